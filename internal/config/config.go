package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Download struct {
		DataDir            string
		DescriptorDir      string
		StatusInterval     time.Duration
		ResumeSyncInterval time.Duration
		PollInterval       time.Duration
		Seed               bool
		NoDHT              bool
		ListenPort         int
		Trackers           []string
	}
	Resume struct {
		// Backend selects where resume blobs live: "sqlite" or "s3".
		Backend   string
		KeyPrefix string
	}
	Archive struct {
		Enabled bool
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret        string
		RegisterPassword string
		TokenTTLMinutes  int
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("TORRENTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.path", "data/torrentctl.db")
	v.SetDefault("download.datadir", "data/downloads")
	v.SetDefault("download.descriptordir", "data/torrents")
	v.SetDefault("download.statusinterval", 2*time.Second)
	v.SetDefault("download.resumesyncinterval", 10*time.Second)
	v.SetDefault("download.pollinterval", time.Second)
	v.SetDefault("download.seed", true)
	v.SetDefault("download.nodht", false)
	v.SetDefault("download.listenport", 42069)
	v.SetDefault("download.trackers", []string{})
	v.SetDefault("resume.backend", "sqlite")
	v.SetDefault("resume.keyprefix", "resume")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "torrentctl")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.registerpassword", "")
	v.SetDefault("auth.tokenttlminutes", 60*24)
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Resume.Backend {
	case "sqlite":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("resume backend s3 requires storage.bucket")
		}
	default:
		return fmt.Errorf("unknown resume backend %q", c.Resume.Backend)
	}
	if c.Archive.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("archive requires storage.bucket")
	}
	if c.Download.ResumeSyncInterval <= 0 {
		return fmt.Errorf("download.resumesyncinterval must be positive")
	}
	return nil
}

// NeedsS3 reports whether any component talks to object storage.
func (c Config) NeedsS3() bool {
	return c.Resume.Backend == "s3" || c.Archive.Enabled
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
