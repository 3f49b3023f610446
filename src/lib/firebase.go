package lib

import (
	"context"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

func NewFirebaseAuth(ctx context.Context, credentialsFile string) (*auth.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		log.Printf("error initializing app: %v\n", err.Error())
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		log.Printf("error initializing Firebase Auth: %v\n", err.Error())
		return nil, err
	}
	return client, nil
}
