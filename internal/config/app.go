package config

import "os"

var (
	ProjectName string
	ListenAddr  string
)

func LoadAppConfig() error {
	ProjectName = os.Getenv("PROJECT_NAME")
	if ProjectName == "" {
		ProjectName = "Ember"
	}

	ListenAddr = os.Getenv("LISTEN_ADDR")
	if ListenAddr == "" {
		ListenAddr = ":8081"
	}

	return nil
}
