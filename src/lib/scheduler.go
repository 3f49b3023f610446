package lib

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
)

func NewScheduler() (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	return sched, nil
}

// ParseAtTime parses an "HH:MM" or "HH:MM:SS" time of day.
func ParseAtTime(at string) (gocron.AtTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, at); err == nil {
			return gocron.NewAtTime(uint(t.Hour()), uint(t.Minute()), uint(t.Second())), nil
		}
	}
	return nil, fmt.Errorf("invalid time of day %q", at)
}

// ScheduleDaily registers task to run once a day at the given time. A run that
// is still going when the next one is due is rescheduled instead of overlapping.
func ScheduleDaily(sched gocron.Scheduler, name, at string, task func()) (uuid.UUID, error) {
	atTime, err := ParseAtTime(at)
	if err != nil {
		return uuid.Nil, err
	}
	j, err := sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(atTime)),
		gocron.NewTask(task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Error creating job %s: %s\n", name, err.Error())
		return uuid.Nil, err
	}
	log.Printf("Job: %s %s\n", j.ID().String(), j.Name())
	return j.ID(), nil
}
