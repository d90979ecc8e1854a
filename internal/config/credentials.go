package config

import "github.com/spf13/viper"

type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
}

func (c Credentials) HasStaticKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// EnvCredentials resolves storage credentials from the process environment.
// Every Load call consults the environment again; nothing is cached.
type EnvCredentials struct {
	v *viper.Viper
}

func NewEnvCredentials() *EnvCredentials {
	v := viper.New()
	_ = v.BindEnv("access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("session_token", "AWS_SESSION_TOKEN")
	_ = v.BindEnv("region", "AWS_REGION", "AWS_DEFAULT_REGION")
	return &EnvCredentials{v: v}
}

func (e *EnvCredentials) Load() Credentials {
	return Credentials{
		AccessKeyID:     e.v.GetString("access_key_id"),
		SecretAccessKey: e.v.GetString("secret_access_key"),
		SessionToken:    e.v.GetString("session_token"),
		Region:          e.v.GetString("region"),
	}
}
