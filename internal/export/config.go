package export

import (
	"fmt"
	"os"
	"strconv"
)

// Config controls the exported report layout. Sizes are in points, the
// margin in millimetres.
type Config struct {
	Paper      string  `toml:"paper"`
	Font       string  `toml:"font"`
	TitleSize  int     `toml:"title_size"`
	DateSize   int     `toml:"date_size"`
	BodySize   int     `toml:"body_size"`
	LineHeight float64 `toml:"line_height"`
	MarginMM   float64 `toml:"margin_mm"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Paper    string
	Font     string
	BodySize string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Paper != "" {
		c.Paper = overlay.Paper
	}
	if overlay.Font != "" {
		c.Font = overlay.Font
	}
	if overlay.TitleSize != 0 {
		c.TitleSize = overlay.TitleSize
	}
	if overlay.DateSize != 0 {
		c.DateSize = overlay.DateSize
	}
	if overlay.BodySize != 0 {
		c.BodySize = overlay.BodySize
	}
	if overlay.LineHeight != 0 {
		c.LineHeight = overlay.LineHeight
	}
	if overlay.MarginMM != 0 {
		c.MarginMM = overlay.MarginMM
	}
}

func (c *Config) loadDefaults() {
	if c.Paper == "" {
		c.Paper = "A4"
	}
	if c.Font == "" {
		c.Font = "Helvetica"
	}
	if c.TitleSize == 0 {
		c.TitleSize = 16
	}
	if c.DateSize == 0 {
		c.DateSize = 10
	}
	if c.BodySize == 0 {
		c.BodySize = 12
	}
	if c.LineHeight == 0 {
		c.LineHeight = 1.15
	}
	if c.MarginMM == 0 {
		c.MarginMM = 20
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Paper != "" {
		if v := os.Getenv(env.Paper); v != "" {
			c.Paper = v
		}
	}
	if env.Font != "" {
		if v := os.Getenv(env.Font); v != "" {
			c.Font = v
		}
	}
	if env.BodySize != "" {
		if v := os.Getenv(env.BodySize); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.BodySize = n
			}
		}
	}
}

func (c *Config) validate() error {
	if _, ok := papers[c.Paper]; !ok {
		return fmt.Errorf("unsupported paper: %q", c.Paper)
	}
	if c.TitleSize <= 0 || c.DateSize <= 0 || c.BodySize <= 0 {
		return fmt.Errorf("font sizes must be positive")
	}
	if c.LineHeight < 1 {
		return fmt.Errorf("line_height must be at least 1, got %v", c.LineHeight)
	}
	width, height := papers[c.Paper].width, papers[c.Paper].height
	if m := mm(c.MarginMM); c.MarginMM < 0 || 2*m >= width || 4*m >= height {
		return fmt.Errorf("margin_mm %v does not fit %s paper", c.MarginMM, c.Paper)
	}
	return nil
}
