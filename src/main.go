package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"time"
	"tourledger/src/boot"
	"tourledger/src/catalog"
	"tourledger/src/config"
	"tourledger/src/giftcards"
	"tourledger/src/identity"
	"tourledger/src/lib"
	libaws "tourledger/src/lib/aws"
	"tourledger/src/lib/mailer"
	"tourledger/src/models"
	"tourledger/src/reconciliation"
	"tourledger/src/reminders"
	"tourledger/src/repository"
	"tourledger/src/sessions"
	"tourledger/src/webhooks"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

const apiPrefix = "/api/v1"

type eventParser interface {
	Parse(payload []byte, signatureHeader string) (webhooks.Event, error)
}

type reconciler interface {
	HandleEvent(ctx context.Context, event webhooks.Event) error
	CreateBooking(ctx context.Context, req reconciliation.Request) (*reconciliation.Outcome, error)
}

type bookingFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

type balanceCheckout interface {
	BalanceCheckout(ctx context.Context, b *models.Booking) (*stripe.CheckoutSession, error)
}

type sessionChanger interface {
	Change(ctx context.Context, req sessions.ChangeRequest) (*sessions.ChangeResult, error)
}

type giftCardLedger interface {
	Validate(ctx context.Context, code string) (*models.GiftCard, error)
	Lookup(ctx context.Context, code string) (*models.GiftCard, error)
	Apply(ctx context.Context, req giftcards.ApplyRequest) (*giftcards.Redemption, error)
}

type reminderRunner interface {
	Run(ctx context.Context) (*reminders.Summary, error)
}

type app struct {
	cfg       *config.Config
	verifier  eventParser
	engine    reconciler
	bookings  bookingFinder
	checkout  balanceCheckout
	changer   sessionChanger
	giftCards giftCardLedger
	reminders reminderRunner
	publisher lib.Publisher
}

func giftCodeValidatorFunc(fl validator.FieldLevel) bool {
	code, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return giftcards.CheckFormat(giftcards.NormalizeCode(code)) == nil
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("giftcode", giftCodeValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	return router
}

func maintenanceModeMiddleware(g *gin.Engine, cfg *config.Config) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if !cfg.MaintenanceMode {
			return
		}
		err := errors.New("server is under maintenance")
		log.Println(err.Error())
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, err.Error())
	})
	return g
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	return g.Group(apiPrefix)
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.APIEnv == "local" {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "Stripe-Signature")
	cc.AllowOriginFunc = func(origin string) bool {
		if cfg.AppHost == "" {
			return false
		}
		match, _ := regexp.MatchString(regexp.QuoteMeta(cfg.AppHost), origin)
		return match
	}
	cc.AllowCredentials = true
	cc.AllowAllOrigins = false
	return cors.New(cc)
}

// routes mounts every route group on g.
func (a *app) routes(g *gin.Engine) {
	a.stripeWebhookRoute(g)
	a.bookingHandlers(g)
	a.adminHandlers(g)
	a.giftCardHandlers(g)
	a.cronHandlers(g)
}

func (a *app) runReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	summary, err := a.reminders.Run(ctx)
	if err != nil {
		log.Printf("[Reminders] scan failed: %s\n", err.Error())
		return
	}
	log.Printf("[Reminders] balance=%d deposit=%d failed=%d\n", summary.BalanceReminders, summary.DepositReminders, summary.Failed)
}

// shutdown flushes publishers that buffer messages.
func (a *app) shutdown() {
	if c, ok := a.publisher.(interface{ Close() }); ok {
		c.Close()
	}
}

func newPublisher(cfg *config.Config, awsCfg aws.Config) (lib.Publisher, string) {
	if cfg.IsProd() {
		return libaws.NewSQSPublisher(awsCfg), cfg.AWS.EventsQueue
	}
	if cfg.KafkaBroker != "" {
		p, err := lib.NewKafkaPublisher(cfg.KafkaBroker, "tourledger-api")
		if err == nil {
			return p, cfg.EventsTopic
		}
	}
	return lib.LogPublisher{}, cfg.EventsTopic
}

func newMailer(cfg *config.Config, awsCfg aws.Config) (*mailer.Dispatcher, error) {
	var backend mailer.Backend
	if cfg.Mailer == "ses" {
		backend = libaws.NewSESMailer(awsCfg)
	} else {
		smtp, err := lib.NewSMTPMailer(cfg.SMTP)
		if err != nil {
			return nil, err
		}
		backend = smtp
	}
	return mailer.NewDispatcher(backend, cfg.SMTP.From, cfg.SMTP.FromName), nil
}

func newApp(ctx context.Context, cfg *config.Config, database *gorm.DB, awsCfg aws.Config, rdb *redis.Client) (*app, error) {
	webhookSecret, err := boot.ResolveWebhookSecret(ctx, awsCfg, cfg)
	if err != nil {
		return nil, err
	}
	if err := boot.DownloadSDKFileFromS3(ctx, awsCfg, cfg); err != nil {
		log.Printf("[S3] credentials unavailable: %s\n", err.Error())
	}
	fauth, err := lib.NewFirebaseAuth(ctx, boot.CredentialsPath(cfg))
	if err != nil {
		return nil, err
	}
	mail, err := newMailer(cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	publisher, topic := newPublisher(cfg, awsCfg)

	bookings := repository.NewBookingRepo(database)
	cat := catalog.New(cfg.CatalogURL, rdb, cfg.CatalogTTL)
	ledger := giftcards.NewLedger(repository.NewGiftCardRepo(database), time.Duration(cfg.GiftCardDays)*24*time.Hour)

	engine := reconciliation.New(reconciliation.Deps{
		Bookings:  bookings,
		Pricing:   cat,
		Identity:  identity.NewProvider(identity.NewFirebaseDirectory(fauth), rdb),
		Profiles:  repository.NewProfileRepo(database),
		GiftCards: ledger,
		Publisher: publisher,
		Mailer:    mail,
	}, reconciliation.Options{
		Currency:        cfg.Stripe.Currency,
		DepositDueDays:  cfg.DepositDueDays,
		BalanceLeadDays: cfg.BalanceLeadDays,
		Topic:           topic,
	})

	return &app{
		cfg:       cfg,
		verifier:  webhooks.NewVerifier(webhookSecret),
		engine:    engine,
		bookings:  bookings,
		checkout:  lib.NewCheckout(lib.NewStripeClient(cfg.Stripe.SecretKey), cfg.Stripe),
		changer:   sessions.NewChanger(bookings, cat, cfg.BalanceLeadDays),
		giftCards: ledger,
		reminders: reminders.NewScanner(bookings, mail),
		publisher: publisher,
	}, nil
}

func initLogger(cfg *config.Config) {
	cwd, _ := os.Getwd()
	logDir := path.Join(cwd, cfg.LogDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		log.Printf("Could not create log dir: %s\n", err.Error())
		return
	}
	if cfg.APIEnv == "local" {
		gin.ForceConsoleColor()
	}

	apiLogs := &lumberjack.Logger{
		Filename:   path.Join(logDir, "api.log"),
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}
	gin.DefaultWriter = io.MultiWriter(apiLogs, os.Stdout)
	log.SetOutput(io.MultiWriter(&lumberjack.Logger{
		Filename:   path.Join(logDir, "server.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}, os.Stderr))
}

func main() {
	if os.Getenv("API_ENV") == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("Error loading .env: %s\n", err.Error())
		}
	}
	cfg := config.Load()
	initLogger(cfg)
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx := context.Background()

	database := boot.InitDb(cfg)

	awsCfg, err := lib.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil && cfg.IsProd() {
		log.Fatalf("error loading aws config: %s", err.Error())
	}

	rdb, err := lib.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("error connecting to redis: %s", err.Error())
	}
	if err := lib.PingRedis(ctx, rdb); err != nil {
		log.Println("Continuing without redis cache")
		rdb = nil
	}

	go boot.InitBroker(ctx, cfg)

	a, err := newApp(ctx, cfg, database, awsCfg, rdb)
	if err != nil {
		log.Fatalf("error initializing services: %s", err.Error())
	}
	defer a.shutdown()
	sched := boot.InitScheduler(cfg, a.runReminders)
	defer boot.StopScheduler(sched)

	registerValidators()

	router := setupRouter()
	router.Use(corsMiddleware(cfg))
	router = maintenanceModeMiddleware(router, cfg)
	a.routes(router)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Printf("Server stopped: %s\n", err.Error())
	}
}
