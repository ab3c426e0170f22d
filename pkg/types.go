package pkg

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	ProjectName    = "gebr"
	EnvPrefix      = "GEBR"
	ConfigFileName = "config.yaml"

	DefaultHours = 1
)

var (
	// ConfigDirectory is searched for the ConfigFileName.
	ConfigDirectory = filepath.Join(xdg.ConfigHome, ProjectName)
)

// Config holds the settings shared by the commands querying the server.
type Config struct {
	ServerURL string
	AuthKey   string
	Timeout   time.Duration
}

// Validate checks the server settings.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return errors.New("--server-url is required")
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return errors.Wrap(err, "invalid --server-url")
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid --server-url %q: expected http(s)://host", c.ServerURL)
	}
	if c.AuthKey == "" {
		return errors.New("--auth-key is required")
	}
	return nil
}

// Window is the lower bound of the builds fetched, framed in minutes or in
// hours before now. When none is set the window is DefaultHours.
type Window struct {
	Minutes int
	Hours   int

	minutesSet bool
	hoursSet   bool
}

// windowFlag is an int flag that records whether it was given.
type windowFlag struct {
	value *int
	set   *bool
}

func (f *windowFlag) String() string {
	if f.value == nil {
		return "0"
	}
	return strconv.Itoa(*f.value)
}

func (f *windowFlag) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return errors.Errorf("invalid integer %q", s)
	}
	*f.value = v
	*f.set = true
	return nil
}

func (f *windowFlag) Type() string { return "int" }

// AddWindowFlags registers the mutually exclusive --minutes and --hours
// flags.
func AddWindowFlags(cmd *cobra.Command, w *Window) {
	cmd.Flags().Var(&windowFlag{value: &w.Minutes, set: &w.minutesSet}, "minutes",
		"Fetch the builds of the last N minutes.")
	cmd.Flags().Var(&windowFlag{value: &w.Hours, set: &w.hoursSet}, "hours",
		fmt.Sprintf("Fetch the builds of the last N hours (default %d).", DefaultHours))
	cmd.MarkFlagsMutuallyExclusive("minutes", "hours")
}

func (w Window) Validate() error {
	if w.Minutes < 0 || w.Hours < 0 {
		return errors.New("the time window must be positive")
	}
	if (w.minutesSet || w.Minutes > 0) && (w.hoursSet || w.Hours > 0) {
		return errors.New("only one of --minutes or --hours can be set")
	}
	if w.minutesSet && w.Minutes == 0 {
		return errors.New("--minutes must be positive")
	}
	if w.hoursSet && w.Hours == 0 {
		return errors.New("--hours must be positive")
	}
	return nil
}

func (w Window) Duration() time.Duration {
	switch {
	case w.Minutes > 0:
		return time.Duration(w.Minutes) * time.Minute
	case w.Hours > 0:
		return time.Duration(w.Hours) * time.Hour
	}
	return DefaultHours * time.Hour
}

// Since returns the start of the window ending at now.
func (w Window) Since(now time.Time) time.Time {
	return now.Add(-w.Duration())
}

func (w Window) String() string {
	if w.Minutes > 0 {
		return fmt.Sprintf("%d minutes", w.Minutes)
	}
	hours := w.Hours
	if hours == 0 {
		hours = DefaultHours
	}
	return fmt.Sprintf("%d hours", hours)
}
