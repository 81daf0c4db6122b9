package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// lookupFunc resolves one environment variable.
type lookupFunc func(name string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(env lookupFunc) (*Config, error) {
	cfg := &Config{}
	if err := decode(reflect.ValueOf(cfg).Elem(), env); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// decode fills every env-tagged field of v, descending into nested
// structs. The first non-blank of env and envAlt wins, then default.
func decode(v reflect.Value, env lookupFunc) error {
	t := v.Type()
	for i := range t.NumField() {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Type.Kind() == reflect.Struct {
			if err := decode(fv, env); err != nil {
				return err
			}
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			continue
		}
		raw, found := firstSet(env, name, sf.Tag.Get("envAlt"))
		switch {
		case found:
		case sf.Tag.Get("required") == "true":
			return fmt.Errorf("required environment variable %s is not set", name)
		default:
			raw = sf.Tag.Get("default")
		}
		if raw == "" {
			continue
		}
		if err := assign(fv, raw); err != nil {
			return fmt.Errorf("%s=%q: %w", name, raw, err)
		}
	}
	return nil
}

func firstSet(env lookupFunc, names ...string) (string, bool) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if v, ok := env(n); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

var durationType = reflect.TypeFor[time.Duration]()

// assign parses raw into the field according to its type. Slices are
// comma separated strings.
func assign(fv reflect.Value, raw string) error {
	if fv.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		fv.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		fv.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Slice:
		if fv.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice of %s", fv.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		fv.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", fv.Kind())
	}
	return nil
}

var rules = validator.New()

// Validate checks the validate tags and the rules spanning several
// settings. Every failure is reported, each under its variable name.
func (c *Config) Validate() error {
	var problems []string

	if err := rules.Struct(c); err != nil {
		var fields validator.ValidationErrors
		if !errors.As(err, &fields) {
			return err
		}
		for _, fe := range fields {
			problems = append(problems, describe(fe))
		}
	}

	if c.Session.Store == StorePostgres {
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL is required when SESSION_STORE=postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			problems = append(problems, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}
	if c.Rate.Enabled && (c.Rate.RequestsPerMinute <= 0 || c.Rate.OTPPerMinute <= 0) {
		problems = append(problems, "rate limits must be positive when RATE_LIMIT_ENABLED=true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	name := envName(fe.StructNamespace())
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s (%q) must be one of: %s", name, fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return name + " must be positive"
	case "min", "max":
		return fmt.Sprintf("%s (%v) must be between 1 and 65535", name, fe.Value())
	}
	return fmt.Sprintf("%s (%v) failed %s", name, fe.Value(), fe.Tag())
}

// envName maps a namespace such as Config.Server.Port to SERVER_PORT.
func envName(namespace string) string {
	t := reflect.TypeFor[Config]()
	parts := strings.Split(namespace, ".")
	for i, p := range parts[1:] {
		sf, ok := t.FieldByName(p)
		if !ok {
			break
		}
		if i == len(parts)-2 {
			if name := sf.Tag.Get("env"); name != "" {
				return name
			}
			break
		}
		t = sf.Type
	}
	return namespace
}

// String returns a safe representation of the config for logging.
// Fields tagged secret:"true" are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	dump(&b, reflect.ValueOf(*c))
	b.WriteString("}")
	return b.String()
}

func dump(b *strings.Builder, v reflect.Value) {
	t := v.Type()
	for i := range t.NumField() {
		if i > 0 {
			b.WriteString(", ")
		}
		sf, fv := t.Field(i), v.Field(i)
		b.WriteString(sf.Name + ": ")
		switch {
		case fv.Kind() == reflect.Struct:
			b.WriteString("{")
			dump(b, fv)
			b.WriteString("}")
		case sf.Tag.Get("secret") == "true" && !fv.IsZero():
			b.WriteString("[MASKED]")
		default:
			fmt.Fprintf(b, "%v", fv.Interface())
		}
	}
}
