package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/simonaseno/nhanes/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.BaseURL, convey.ShouldEqual, "https://wwwn.cdc.gov/Nchs/Data/Nhanes/Public")
				convey.So(cfg.OutputDir, convey.ShouldEqual, "data")
				convey.So(cfg.JoinKey, convey.ShouldEqual, "SEQN")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			})

			convey.Convey("Then the embedded registries should be populated", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(cfg.LabFiles), convey.ShouldEqual, 6)
				convey.So(len(cfg.DemoFiles), convey.ShouldEqual, 6)
				convey.So(cfg.LabFiles[0].File, convey.ShouldEqual, "LAB13")
				convey.So(cfg.LabFiles[3].File, convey.ShouldEqual, "TCHOL_D")
				convey.So(cfg.LabFiles[3].Cycle, convey.ShouldEqual, "2005-2006")
				convey.So(cfg.LabFiles[3].Year, convey.ShouldEqual, "2005")
				convey.So(cfg.DemoFiles[0].File, convey.ShouldEqual, "DEMO")
				convey.So(cfg.DemoFiles[5].File, convey.ShouldEqual, "DEMO_F")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			// Set environment variables
			_ = os.Setenv("NHANES_OUTPUT_DIR", "/tmp/survey")
			_ = os.Setenv("NHANES_JOIN_KEY", "RESPID")
			_ = os.Setenv("NHANES_WORKER_COUNT", "8")
			_ = os.Setenv("NHANES_QUEUE_SIZE", "32")
			_ = os.Setenv("NHANES_FETCH_TIMEOUT_SECONDS", "30")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/survey")
				convey.So(cfg.JoinKey, convey.ShouldEqual, "RESPID")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 8)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 32)
				convey.So(cfg.FetchTimeoutSeconds, convey.ShouldEqual, 30)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			yamlContent := `
base_url: "http://127.0.0.1:8099/data"
output_dir: "/tmp/survey-run"
worker_count: 2
lab_files:
  - file: TCHOL_D
    cycle: 2005-2006
    year: "2005"
demo_files:
  - file: DEMO_D
    cycle: 2005-2006
    year: "2005"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then file values should override the embedded registry", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.BaseURL, convey.ShouldEqual, "http://127.0.0.1:8099/data")
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/survey-run")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(len(cfg.LabFiles), convey.ShouldEqual, 1)
				convey.So(cfg.LabFiles[0].File, convey.ShouldEqual, "TCHOL_D")
				convey.So(len(cfg.DemoFiles), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
output_dir: "/tmp/from-file"
worker_count: 2
queue_size: 16
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("NHANES_CONFIG", tmpFile)
			_ = os.Setenv("NHANES_WORKER_COUNT", "6") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.OutputDir, convey.ShouldEqual, "/tmp/from-file") // From file
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)              // Overridden by env
				convey.So(cfg.QueueSize, convey.ShouldEqual, 16)               // From file
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			cfg, err := config.Load(ctx, "/non/existent/file.yaml")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an empty join key", func() {
			_ = os.Setenv("NHANES_JOIN_KEY", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "join_key")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a file registry entry is incomplete", func() {
			yamlContent := `
lab_files:
  - file: TCHOL_D
    cycle: 2005-2006
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			cfg, err := config.Load(ctx, tmpFile)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "lab_files")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("NHANES_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"NHANES_CONFIG",
		"NHANES_BASE_URL",
		"NHANES_OUTPUT_DIR",
		"NHANES_JOIN_KEY",
		"NHANES_WORKER_COUNT",
		"NHANES_QUEUE_SIZE",
		"NHANES_FETCH_TIMEOUT_SECONDS",
		"NHANES_STATUS_ADDR",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "nhanes-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
