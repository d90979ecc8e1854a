package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
)

func localConfig(root string) *config.Config {
	cfg := &config.Config{
		App: config.AppConfig{
			Name:     "s3cleaner-test",
			LogLevel: "error",
			LogFile:  filepath.Join(root, "logs", "activity.log"),
		},
		Server: config.ServerConfig{
			Addr:              "127.0.0.1:0",
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Storage: config.StorageConfig{
			Type:      "local",
			LocalRoot: filepath.Join(root, "data"),
			PageSize:  100,
		},
		Clean: config.CleanConfig{
			Extensions: domain.DefaultExtensions,
			MaxAgeDays: domain.DefaultMaxAgeDays,
			BatchSize:  domain.MaxBatchSize,
		},
		Schedule: config.ScheduleConfig{
			Cron: "0 0 3 * * *",
			Targets: []config.CleanTarget{
				{Bucket: "scans", Prefix: "2023/"},
				{Bucket: "photos"},
			},
		},
	}
	So(cfg.Validate(), ShouldBeNil)
	return cfg
}

func TestApp(t *testing.T) {
	const day = 24 * time.Hour

	Convey("Given an app over local storage", t, func() {
		root := t.TempDir()
		cfg := localConfig(root)
		data := cfg.Storage.LocalRoot

		seedObject(data, "scans", "2023/jaw.stl", 120*day)
		seedObject(data, "scans", "2024/skull.stl", 120*day)
		seedObject(data, "photos", "IMG_0001.JPG", 95*day)
		seedObject(data, "photos", "notes.txt", 95*day)

		application, err := New(cfg)
		So(err, ShouldBeNil)
		Reset(application.Shutdown)

		Convey("Clean should run a single bucket", func() {
			result, err := application.Clean(context.Background(), domain.CleanRequest{Bucket: "photos"})

			So(err, ShouldBeNil)
			So(result.Deleted, ShouldEqual, 1)
			So(result.RunID, ShouldNotBeEmpty)
			_, err = os.Stat(filepath.Join(data, "photos", "notes.txt"))
			So(err, ShouldBeNil)
		})

		Convey("The scheduled job should clean every target in turn", func() {
			So(application.cleanTargets(context.Background()), ShouldBeNil)

			_, err := os.Stat(filepath.Join(data, "scans", "2023", "jaw.stl"))
			So(os.IsNotExist(err), ShouldBeTrue)
			_, err = os.Stat(filepath.Join(data, "scans", "2024", "skull.stl"))
			So(err, ShouldBeNil)
			_, err = os.Stat(filepath.Join(data, "photos", "IMG_0001.JPG"))
			So(os.IsNotExist(err), ShouldBeTrue)
		})

		Convey("A cancelled scheduled job should stop before the next target", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			err := application.cleanTargets(ctx)
			So(err, ShouldEqual, context.Canceled)
			_, statErr := os.Stat(filepath.Join(data, "scans", "2023", "jaw.stl"))
			So(statErr, ShouldBeNil)
		})

		Convey("The activity log directory should exist", func() {
			info, err := os.Stat(filepath.Dir(cfg.App.LogFile))
			So(err, ShouldBeNil)
			So(info.IsDir(), ShouldBeTrue)
		})
	})

	Convey("Given an unsupported storage type", t, func() {
		cfg := localConfig(t.TempDir())
		cfg.Storage.Type = "gcs"

		_, err := New(cfg)

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "unsupported storage type")
	})

	Convey("Given the s3 storage type", t, func() {
		cfg := localConfig(t.TempDir())
		cfg.Storage = config.StorageConfig{
			Type:           "s3",
			Endpoint:       "http://127.0.0.1:9000",
			UsePathStyle:   true,
			MaxAttempts:    5,
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    30 * time.Second,
		}

		application, err := New(cfg)

		So(err, ShouldBeNil)
		So(application, ShouldNotBeNil)
		application.Shutdown()
	})
}
