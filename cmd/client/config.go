package main

// Config is read through envconfig with the CHAT prefix.
type Config struct {
	ServerURL string `envconfig:"SERVER_URL" default:"http://localhost:8080"`
	Username  string `envconfig:"USERNAME" required:"true"`
	Password  string `envconfig:"PASSWORD" required:"true"`
	Register  bool   `envconfig:"REGISTER" default:"false"`
}
