// Standalone monitoring GraphQL server. Run with: go run ./cmd/graphql
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"mes.GO/api"
	graphqlApi "mes.GO/api/graphql"
	_ "mes.GO/api/health"
	"mes.GO/config"
	"mes.GO/core/container"
)

func main() {
	_ = godotenv.Load()
	log := config.InitLogger()
	defer log.Sync()

	db, err := config.NewDB()
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	cont := container.New(db, config.App(), log, container.Options{})

	e := echo.New()
	e.HideBanner = true
	e.Use(api.RequestMetrics())
	graphqlApi.RegisterGraphQLRoutes(e, cont)
	api.ApplyRoutes(e, cont)

	// ASCII banner on start (random font each run)
	gqlFonts := []string{"banner", "big", "block", "slant", "standard", "small", "shadow", "speed", "doom", "larry3d", "puffy", "rectangles"}
	fig := figure.NewFigure("MES GQL ->", gqlFonts[rand.Intn(len(gqlFonts))], true)
	fig.Print()
	fmt.Println("Standalone monitoring GraphQL server (read-only)")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Info("graphql ready", zap.String("graphql", "http://localhost:"+port+"/graphql"), zap.String("playground", "http://localhost:"+port+"/playground"))
	e.Logger.Fatal(e.Start(":" + port))
}
