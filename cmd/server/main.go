package main

import (
	_ "github.com/eleven-am/civic311/docs"
	"github.com/eleven-am/civic311/internal/bootstrap"
)

// @title Civic 311 API
// @version 1.0.0
// @description Issue reporting demo: identity, image analysis and live report sessions.

// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	bootstrap.Run()
}
