// Package webdriver starts a local browser driver configured to save
// downloads into a directory without prompting.
package webdriver

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"github.com/tebeka/selenium/firefox"
)

const (
	Chrome  = "chrome"
	Firefox = "firefox"
)

type Config struct {
	Browser     string `envconfig:"BROWSERFIXTURE_BROWSER"`
	DriverPath  string `envconfig:"BROWSERFIXTURE_DRIVER_PATH"`
	BrowserPath string `envconfig:"BROWSERFIXTURE_BROWSER_PATH"`
	Port        int    `envconfig:"BROWSERFIXTURE_DRIVER_PORT"`
	Headless    bool   `envconfig:"BROWSERFIXTURE_HEADLESS"`
}

func NewConfig() Config {
	return Config{
		Browser:  Chrome,
		Port:     9515,
		Headless: true,
	}
}

// ConfigFromEnv applies BROWSERFIXTURE_* variables on top of the defaults.
func ConfigFromEnv() (Config, error) {
	cfg := NewConfig()
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("webdriver config: %w", err)
	}
	return cfg, nil
}

// Enabled reports whether a driver binary was configured.
func (c Config) Enabled() bool {
	return c.DriverPath != ""
}

func capabilities(cfg Config, downloadDir string) (selenium.Capabilities, error) {
	dir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, fmt.Errorf("error getting absolute path of %s: %w", downloadDir, err)
	}

	var args []string
	if cfg.Headless {
		args = append(args, "--headless")
	}
	prefs := make(map[string]interface{})

	switch cfg.Browser {
	case Chrome:
		caps := selenium.Capabilities{"browserName": Chrome}
		prefs["download.default_directory"] = dir
		prefs["download.prompt_for_download"] = false
		prefs["download.directory_upgrade"] = true
		prefs["profile.default_content_setting_values.automatic_downloads"] = 1
		args = append(args, "--no-sandbox")
		caps.AddChrome(chrome.Capabilities{Path: cfg.BrowserPath, Prefs: prefs, Args: args})
		return caps, nil
	case Firefox:
		caps := selenium.Capabilities{"browserName": Firefox}
		prefs["browser.download.dir"] = dir
		prefs["browser.download.folderList"] = 2
		prefs["browser.download.useDownloadDir"] = true
		prefs["browser.helperApps.neverAsk.saveToDisk"] = "text/plain,text/csv,application/json,application/octet-stream"
		caps.AddFirefox(firefox.Capabilities{Binary: cfg.BrowserPath, Prefs: prefs, Args: args})
		return caps, nil
	default:
		return nil, fmt.Errorf("unsupported driver type: %s", cfg.Browser)
	}
}

// Session is a running driver service plus the remote browser it controls.
type Session struct {
	Driver  selenium.WebDriver
	service *selenium.Service
	log     logrus.FieldLogger
}

// Start launches the driver binary and opens a browser that saves downloads
// to downloadDir.
func Start(cfg Config, downloadDir string, log logrus.FieldLogger) (*Session, error) {
	caps, err := capabilities(cfg, downloadDir)
	if err != nil {
		return nil, err
	}

	var service *selenium.Service
	opts := []selenium.ServiceOption{selenium.Output(io.Discard)}
	if cfg.Browser == Firefox {
		service, err = selenium.NewGeckoDriverService(cfg.DriverPath, cfg.Port, opts...)
	} else {
		service, err = selenium.NewChromeDriverService(cfg.DriverPath, cfg.Port, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("start %s driver %s: %w", cfg.Browser, cfg.DriverPath, err)
	}

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", cfg.Port))
	if err != nil {
		if stopErr := service.Stop(); stopErr != nil {
			log.WithError(stopErr).Warn("Error stopping driver service")
		}
		return nil, fmt.Errorf("new %s session: %w", cfg.Browser, err)
	}
	log.WithFields(logrus.Fields{"browser": cfg.Browser, "downloads": downloadDir}).Info("Browser session started")
	return &Session{Driver: driver, service: service, log: log}, nil
}

// Close quits the browser and stops the driver service. Both are attempted
// even if the first fails.
func (s *Session) Close() error {
	var errs []error
	if err := s.Driver.Quit(); err != nil {
		if strings.Contains(err.Error(), "invalid session id") {
			s.log.WithError(err).Warn("Browser session already gone")
		} else {
			errs = append(errs, fmt.Errorf("quit driver: %w", err))
		}
	}
	if err := s.service.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop service: %w", err))
	}
	return errors.Join(errs...)
}

// Click finds the element with the given id and clicks it.
func (s *Session) Click(id string) error {
	elem, err := s.Driver.FindElement(selenium.ByID, id)
	if err != nil {
		return fmt.Errorf("find #%s: %w", id, err)
	}
	if err := elem.Click(); err != nil {
		return fmt.Errorf("click #%s: %w", id, err)
	}
	return nil
}
