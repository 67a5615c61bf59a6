package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cache           sync.Map // type name -> *cacheEntry
	defaultEnvOnce  sync.Once
	defaultEnvFiles = []string{".env"}
)

// LoadEnvFiles reads the given dotenv files into the process environment.
// Variables that are already set win. Call it before the first Load to use
// files other than ./.env.
func LoadEnvFiles(paths ...string) error {
	var loadErr error
	defaultEnvOnce.Do(func() {
		if len(paths) == 0 {
			paths = defaultEnvFiles
		}
		loadErr = godotenv.Load(paths...)
	})
	if loadErr != nil {
		return errors.Join(ErrEnvFile, loadErr)
	}
	return nil
}

// Load parses environment variables into v using `env` struct tags.
// Each type is parsed once per process; later calls copy the cached value.
// A failed parse is cached too, so a misconfigured process fails the same way every time.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	// A missing ./.env is fine.
	defaultEnvOnce.Do(func() { _ = godotenv.Load(defaultEnvFiles...) })

	if v == nil {
		return ErrNilPointer
	}

	raw, _ := cache.LoadOrStore(typeName[T](), &cacheEntry{})
	entry := raw.(*cacheEntry)

	entry.once.Do(func() {
		var parsed T
		if err := env.Parse(&parsed); err != nil {
			entry.err = errors.Join(ErrParsingConfig, err)
			return
		}
		entry.value = parsed
	})

	if entry.err != nil {
		return entry.err
	}

	cached, ok := entry.value.(T)
	if !ok {
		return ErrInvalidConfigType
	}
	*v = cached
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	t := reflect.TypeFor[T]()
	return t.PkgPath() + "." + t.String()
}
