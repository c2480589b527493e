package config

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	BaseURL     string `env:"BASE_URL"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"comolor.db"`

	Mpesa   Mpesa   `envPrefix:"MPESA_"`
	Desktop Desktop `envPrefix:"DESKTOP_"`
}

type Mpesa struct {
	ConsumerKey    string `env:"CONSUMER_KEY"`
	ConsumerSecret string `env:"CONSUMER_SECRET"`
	ShortCode      string `env:"SHORTCODE"`
	Passkey        string `env:"PASSKEY"`
	Environment    string `env:"ENVIRONMENT" envDefault:"sandbox"` // sandbox or production
}

type Desktop struct {
	SecretKey  string `env:"SECRET_KEY" envDefault:"comolor_desktop_2025"`
	APIVersion string `env:"API_VERSION" envDefault:"1.0.0"`
	MinVersion string `env:"MIN_APP_VERSION" envDefault:"1.0.0"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}
