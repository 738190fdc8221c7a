package main

// General API documentation for swaggo. Run `swag init -g cmd/triaged/docs.go` to regenerate docs/.
//
// @title           triaged API
// @version         1.0
// @description     HTTP API for the medical triage chatbot.
//
// @contact.name   triaged maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
