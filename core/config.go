package core

import (
	"fmt"
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env              string
		Build            string
		AppName          string        `mapstructure:"appName"`
		Debug            bool          `mapstructure:"debug"`
		TestMode         bool          `mapstructure:"testMode"`
		SecretKey        string        `mapstructure:"secretKey"`
		FrontendBaseURL  string        `mapstructure:"frontendBaseURL"`
		BackendURL       string        `mapstructure:"backendURL"`
		DefaultFromEmail string        `mapstructure:"defaultFromEmail"`
		RollbarToken     string        `mapstructure:"rollbarToken"`
		WorkDir          string        `mapstructure:"-"`
		Server           ServerConfig  `mapstructure:"server"`
		Database         DBConfig      `mapstructure:"database"`
		Redis            RedisConfig   `mapstructure:"redis"`
		Storage          StorageConfig `mapstructure:"storage"`
		Email            EmailConfig   `mapstructure:"email"`
		Video            VideoConfig   `mapstructure:"video"`
	}

	ServerConfig struct {
		Host                      string        `mapstructure:"host"`
		Address                   string        `mapstructure:"address"`
		HLSAddress                string        `mapstructure:"hlsAddress"`
		DebugHost                 string        `mapstructure:"debugHost"`
		ShutdownTimeout           time.Duration `mapstructure:"shutdownTimeout"`
		JWTExpirationDelta        time.Duration `mapstructure:"jwtExpirationDelta"`
		JWTRefreshExpirationDelta time.Duration `mapstructure:"jwtRefreshExpirationDelta"`
		PasswordResetTimeoutDelta time.Duration `mapstructure:"passwordResetTimeoutDelta"`
		CORSOrigins               []string      `mapstructure:"corsOrigins"`
		IDEDir                    string        `mapstructure:"ideDir"`
		AuthRateLimit             int           `mapstructure:"authRateLimit"`
		AuthRateWindow            time.Duration `mapstructure:"authRateWindow"`
	}

	DBConfig struct {
		Engine        string `mapstructure:"engine"` // postgres | memory
		Host          string `mapstructure:"host"`
		Port          string `mapstructure:"port"`
		Name          string `mapstructure:"name"`
		User          string `mapstructure:"user"`
		Password      string `mapstructure:"password"`
		AdminUser     string `mapstructure:"adminUser"`
		AdminPassword string `mapstructure:"adminPassword"`
		DisableTLS    bool   `mapstructure:"disableTLS"`
	}

	RedisConfig struct {
		URL     string `mapstructure:"url"` // empty: in-process fallbacks
		Channel string `mapstructure:"channel"`
	}

	StorageConfig struct {
		Driver        string `mapstructure:"driver"` // local | gcs
		LocalDir      string `mapstructure:"localDir"`
		PublicBaseURL string `mapstructure:"publicBaseURL"`
		GCSBucket     string `mapstructure:"gcsBucket"`
	}

	EmailConfig struct {
		Provider       string `mapstructure:"provider"` // console | sendgrid | resend
		SendgridApiKey string `mapstructure:"sendgridApiKey"`
		ResendApiKey   string `mapstructure:"resendApiKey"`
	}

	VideoConfig struct {
		HLSDir         string `mapstructure:"hlsDir"`
		WorkDir        string `mapstructure:"workDir"`
		FFmpegBinary   string `mapstructure:"ffmpegBinary"`
		SegmentSeconds int    `mapstructure:"segmentSeconds"`
	}
)

func (c DBConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromAddress() mail.Address {
	addr, err := mail.ParseAddress(c.DefaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
	}
	return *addr
}

// NewConfig loads the app configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed by the env name, e.g. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:5173")
	v.SetDefault("backendURL", "http://localhost:8000")
	v.SetDefault("defaultFromEmail", "Darasa <noreply@localhost>")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.hlsAddress", ":8001")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.corsOrigins", []string{"http://localhost:5173"})
	v.SetDefault("server.ideDir", "public/judge0-ide")
	v.SetDefault("server.authRateLimit", 10)
	v.SetDefault("server.authRateWindow", time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "darasa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "darasa:realtime")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.publicBaseURL", "http://localhost:8000/storage")
	v.SetDefault("storage.gcsBucket", "")

	v.SetDefault("email.provider", "console")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.resendApiKey", "")

	v.SetDefault("video.hlsDir", "hls-videos")
	v.SetDefault("video.workDir", filepath.Join(os.TempDir(), "darasa-hls"))
	v.SetDefault("video.ffmpegBinary", "ffmpeg")
	v.SetDefault("video.segmentSeconds", 10)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		log.Fatalf("config.Unmarshal: %v", err)
	}
	conf.Env = env
	conf.Build = os.Getenv("BUILD")
	if conf.Build == "" {
		conf.Build = "dev"
	}
	conf.WorkDir = wd

	// RESEND_API_KEY is what the hosted email function used; honor it unprefixed too.
	if conf.Email.ResendApiKey == "" {
		conf.Email.ResendApiKey = os.Getenv("RESEND_API_KEY")
	}
	return conf
}

// NewTestConfig returns a Config suitable for unit tests: no files, no environment.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		AppName:          "Darasa",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:5173",
		BackendURL:       "http://localhost:8000",
		DefaultFromEmail: "Darasa <noreply@localhost>",
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
			ShutdownTimeout:           time.Second,
			AuthRateLimit:             100,
			AuthRateWindow:            time.Minute,
		},
		Database: DBConfig{Engine: "memory"},
		Storage:  StorageConfig{Driver: "local", PublicBaseURL: "http://localhost:8000/storage"},
		Email:    EmailConfig{Provider: "console"},
		Video:    VideoConfig{FFmpegBinary: "ffmpeg", SegmentSeconds: 10},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s debug=%t", c.AppName, c.Build, c.Env, c.Debug)
}
