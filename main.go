package main

import (
	"context"
	"editorchat-backend/internal/attachments"
	"editorchat-backend/internal/commands"
	"editorchat-backend/internal/database"
	"editorchat-backend/internal/handlers"
	"editorchat-backend/internal/identity"
	"editorchat-backend/internal/jwt"
	"editorchat-backend/internal/keyValue"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/poll"
	"editorchat-backend/internal/snowflake"
	"editorchat-backend/internal/store"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func setupLogger(cfg models.ConfigFile) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	if cfg.LogToFile {
		config.OutputPaths = []string{"app.log", "stdout"}
	} else {
		config.OutputPaths = []string{"stdout"}
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	config.Level = level

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func readConfigFile() (models.ConfigFile, error) {
	cfg := models.ConfigFile{
		Address:           "0.0.0.0",
		Port:              "3000",
		LogLevel:          "info",
		SelfContained:     true,
		EditWindowMinutes: 15,
		PollLimit:         poll.DefaultLimit,
		OrphanPolicy:      string(store.OrphanKeep),
		AttachmentDir:     "./public/attachments",
	}

	configFile, err := os.Open("config.json")
	if err != nil {
		return cfg, err
	}
	defer configFile.Close()

	bytes, err := io.ReadAll(configFile)
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(bytes, &cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupRedis(cfg models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func main() {
	fmt.Println("Reading config file...")
	cfg, err := readConfigFile()
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println("Setting up logger...")
	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer sugar.Sync()

	db, err := database.Setup(sugar, &cfg)
	if err != nil {
		sugar.Fatal(err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if !cfg.SelfContained {
		sugar.Info("Connecting to redis...")
		redisClient, err = setupRedis(cfg)
		if err != nil {
			sugar.Fatal(err)
		}
	}
	keyValue.Setup(sugar, redisClient, cfg.SelfContained)

	ids, err := snowflake.NewNode(cfg.SnowflakeWorkerID, time.Now)
	if err != nil {
		sugar.Fatal(err)
	}

	orphanPolicy, err := store.ParseOrphanPolicy(cfg.OrphanPolicy)
	if err != nil {
		sugar.Fatal(err)
	}

	messages, err := store.New(db, store.Options{
		Sugar:        sugar,
		IDs:          ids,
		EditWindow:   time.Duration(cfg.EditWindowMinutes) * time.Minute,
		OrphanPolicy: orphanPolicy,
	})
	if err != nil {
		sugar.Fatal(err)
	}

	isHttps := cfg.TlsCert != "" && cfg.TlsKey != ""

	err = jwt.Setup(cfg.JwtSecret, isHttps)
	if err != nil {
		sugar.Fatal(err)
	}

	handlers.Setup(handlers.Dependencies{
		Sugar:       sugar,
		Processor:   commands.New(messages, keyValue.Locker{TTL: 10 * time.Second}, sugar),
		Reader:      poll.New(messages, cfg.PollLimit),
		Users:       identity.New(messages, sugar),
		Attachments: attachments.New(cfg.AttachmentDir, cfg.MaxAttachmentBytes),
	})

	var httpProtocol string
	if isHttps {
		httpProtocol = "https"
	} else {
		httpProtocol = "http"
	}

	sugar.Infof("Edit window is %d minutes, orphaned replies are handled with %q", cfg.EditWindowMinutes, orphanPolicy)
	sugar.Infof("Server is running on %s://%s:%s", httpProtocol, cfg.Address, cfg.Port)

	err = handlers.Listen(isHttps, &cfg, handlers.Router(&cfg))
	if err != nil {
		sugar.Fatal(err)
	}
}
