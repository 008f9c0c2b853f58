// Code scaffolded by goctl. Safe to edit.
// goctl 1.9.2

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/zeromicro/go-zero/rest"

	"tickd/internal/config"
	"tickd/internal/handler"
	"tickd/internal/svc"
)

var configFile = flag.String("f", "etc/tickd.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	svcCtx := svc.NewServiceContext(cfg)
	handler.RegisterHandlers(server, svcCtx)

	schemaCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err := svcCtx.TickStore.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	if cfg.Ingest.Autostart {
		if err := svcCtx.Controller.Start(); err != nil {
			log.Fatalf("failed to autostart feed: %v", err)
		}
		defer svcCtx.Controller.Stop()
	}

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
