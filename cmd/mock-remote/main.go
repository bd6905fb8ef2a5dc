// Command mock-remote serves an in-memory board API for local development and
// end-to-end tests of the gateway.
package main

import (
	"os"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-sync/api"
	"kanban-sync/domain"
	"kanban-sync/mockremote"
)

func main() {
	logger := log.New()
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		logger.SetLevel(log.DebugLevel)
	}

	var auth mockremote.Authenticator
	if secret := os.Getenv("REMOTE_JWT_SECRET"); secret != "" {
		auth = api.NewAuth(nil, "", "", api.AuthOptions{TestSecret: []byte(secret)})
	}
	srv := mockremote.New(auth, logger)
	if os.Getenv("MOCK_SEED") == "1" {
		srv.Seed(
			domain.Task{ID: "1", Title: "Write the board", Status: "0", Priority: domain.PriorityHigh},
			domain.Task{ID: "2", Title: "Wire the cache", Status: "1", Priority: domain.PriorityMedium},
			domain.Task{ID: "3", Title: "Ship it", Status: "2", Priority: domain.PriorityLow},
		)
	}

	e := echo.New()
	api.Use(e, logger)
	srv.Register(e)

	listenAddr := ":8081"
	if v, ok := os.LookupEnv("MOCK_LISTEN_ADDR"); ok {
		listenAddr = v
	}
	e.Logger.Fatal(e.Start(listenAddr))
}
