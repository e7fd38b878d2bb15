package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sagarregmi2056/WhatsappBulkMessage/controller"
	"github.com/sagarregmi2056/WhatsappBulkMessage/dao"
	"github.com/sagarregmi2056/WhatsappBulkMessage/log"
	"github.com/sagarregmi2056/WhatsappBulkMessage/phone"
	"github.com/sagarregmi2056/WhatsappBulkMessage/service"
	"github.com/sagarregmi2056/WhatsappBulkMessage/util"
	"github.com/sagarregmi2056/WhatsappBulkMessage/whatsapp"
)

// @title Whatsapp bulk message HTTP API
// @description Campaign based bulk messaging over Whatsapp

func init() {
	err := godotenv.Load()
	if err != nil {
		log.Error.Println(err)
	}
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	//create campaign log
	campaignLog, err := dao.NewCampaignLog(util.GetEnv("LOG_PATH", "campaigns.log"))
	if err != nil {
		log.Fatal(err)
	}
	defer campaignLog.Close()

	//create whatsapp transport factory backed by the credential store
	factory, err := whatsapp.NewMeowFactory(util.GetEnv("DB_PATH", "whatsapp.db"))
	if err != nil {
		log.Fatal(err)
	}

	registry := service.NewRegistry(context.Background(), factory,
		whatsapp.Config{
			MaxReconnect:   util.GetEnvAsInt("MAX_RECONNECT", 5),
			ReconnectBase:  time.Duration(util.GetEnvAsInt("RECONNECT_BASE_MS", 2000)) * time.Millisecond,
			PairingTimeout: time.Duration(util.GetEnvAsInt("PAIRING_TIMEOUT_SEC", 120)) * time.Second,
		},
		whatsapp.QueueConfig{
			MessageDelay: time.Duration(util.GetEnvAsInt("MSG_DELAY_MS", 3000)) * time.Millisecond,
			MaxRetries:   util.GetEnvAsInt("MAX_SEND_RETRIES", 2),
			Buffer:       util.GetEnvAsInt("QUEUE_BUFFER", 1024),
		})
	defer registry.Shutdown()

	campaignService := service.NewService(
		registry,
		campaignLog,
		phone.NewNormalizer(util.GetEnv("DEFAULT_COUNTRY_CODE", "977")),
	)

	//pair eagerly so the QR code is available as soon as the UI asks
	registry.Acquire(service.DefaultUser)

	//attach http handlers
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(util.GetEnv("BODY_LIMIT", "32M")))

	bindRoutes(e, campaignService)

	//start http server
	log.Fatal(e.Start(":" + util.GetEnv("HTTP_PORT", "8080")))
}

func bindRoutes(e *echo.Echo, srv service.Service) {
	maxMediaBytes := int64(util.GetEnvAsInt("MEDIA_MAX_MB", 16)) * 1024 * 1024

	e.POST("/api/send-messages", controller.GetSendMessagesFunc(srv, maxMediaBytes))

	e.GET("/api/whatsapp-status", controller.GetWhatsappStatusFunc(srv))

	e.GET("/api/messages", controller.GetListMessagesFunc(srv))

	e.GET("/api/messages/search", controller.GetSearchMessagesFunc(srv))

	e.GET("/api/messages/:timestamp", controller.GetMessageFunc(srv))

	e.POST("/api/logout", controller.GetLogoutFunc(srv))
}
