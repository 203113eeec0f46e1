package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/blob"
	"github.com/sells-group/survey-cli/internal/codescheme"
	"github.com/sells-group/survey-cli/internal/config"
	"github.com/sells-group/survey-cli/internal/location"
	"github.com/sells-group/survey-cli/internal/plan"
	"github.com/sells-group/survey-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "survey.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initBlob(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver:      cfg.Blob.Driver,
		Root:        cfg.Blob.Root,
		MaxAttempts: cfg.Blob.MaxAttempts,
		S3: blob.S3Config{
			Bucket:    cfg.Blob.S3.Bucket,
			Region:    cfg.Blob.S3.Region,
			Endpoint:  cfg.Blob.S3.Endpoint,
			PathStyle: cfg.Blob.S3.PathStyle,
		},
		FTP: blob.FTPConfig{
			Addr:     cfg.Blob.FTP.Addr,
			User:     cfg.Blob.FTP.User,
			Password: cfg.Blob.FTP.Password,
			Root:     cfg.Blob.FTP.Root,
			Timeout:  cfg.Blob.FTP.Timeout,
		},
	})
}

// coding holds the immutable coding configuration of a run.
type coding struct {
	schemes  *codescheme.Set
	registry *plan.Registry
	lookup   location.Lookup
}

// loadCoding reads schemes, the plan registry and the optional location
// table named by pc.
func loadCoding(pc config.PipelineConfig) (*coding, error) {
	schemes, err := codescheme.LoadDir(pc.SchemesDir)
	if err != nil {
		return nil, eris.Wrap(err, "load schemes")
	}
	reg, err := plan.LoadFile(pc.PlansFile, schemes)
	if err != nil {
		return nil, eris.Wrap(err, "load coding plans")
	}

	c := &coding{schemes: schemes, registry: reg}
	if pc.LocationTable != "" {
		table, err := location.LoadTable(pc.LocationTable)
		if err != nil {
			return nil, eris.Wrap(err, "load location table")
		}
		c.lookup = table
	} else if len(reg.LocationPlans()) > 0 {
		zap.L().Warn("no location table configured, location levels will not be derived",
			zap.Int("location_plans", len(reg.LocationPlans())))
	}

	zap.L().Info("coding configuration loaded",
		zap.String("schemes_dir", filepath.Clean(pc.SchemesDir)),
		zap.Int("schemes", len(schemes.Keys())),
		zap.Int("plans", len(reg.Plans())),
	)
	return c, nil
}
