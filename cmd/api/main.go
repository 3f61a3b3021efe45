package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	"supportdesk/internal/adapter/api"
	"supportdesk/internal/adapter/api/handler"
	apimiddleware "supportdesk/internal/adapter/api/middleware"
	"supportdesk/internal/adapter/api/router"
	"supportdesk/internal/adapter/repository"
	"supportdesk/internal/infrastructure/firebase"
	"supportdesk/internal/infrastructure/storage"
	"supportdesk/internal/infrastructure/websocket"
	"supportdesk/internal/usecase"
	"supportdesk/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption
	credentialsPath := ""

	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		credentialsPath = os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if credentialsPath == "" {
			credentialsPath = "./service-account.json"
		}
		if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", credentialsPath)
		}
		log.Printf("Using Firebase service account from file: %s", credentialsPath)
		opt = option.WithCredentialsFile(credentialsPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.FirebaseProject, credentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	ticketRepo := repository.NewFirestoreTicketRepository(firestoreClient)
	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	fileMetadataRepo := repository.NewFirestoreFileMetadataRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient, cfg.FirebaseApiKey)

	chatUseCase := usecase.NewChatUseCase(chatRepo, ticketRepo, userRepo)

	hub := websocket.NewHub()
	hub.SetChatService(chatUseCase)
	hub.Start(ctx)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authMiddleware := apimiddleware.NewAuthMiddleware(authClient)

	handlers := router.Handlers{
		Chat:      handler.NewChatHandler(chatUseCase),
		WebSocket: handler.NewWebSocketHandler(hub, authMiddleware, userRepo),
		File:      handler.NewFileHandler(storageClient, fileMetadataRepo),
		Health:    handler.NewHealthHandler(firebaseAuthClient),
		DevToken:  handler.NewDevTokenHandler(firebaseAuthClient, userRepo),
	}

	router.Setup(e, handlers, authMiddleware, cfg.Environment)

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := e.Start(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
