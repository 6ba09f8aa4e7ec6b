/*
Package config loads the category and goal configuration file.

PURPOSE:
  The server seeds its goal store from a YAML file at startup. This package
  owns the file format, its validation, and the conversion into engine
  types.

FILE FORMAT:
  aggregate_category: all
  scheduler_interval: 5m
  categories:
    - id: games
      daily_goal_minutes: 120
      condition: at_most
      reward:
        label: snack chips
        quantity_per_unit: 2
        unit_label: bags
        time_unit: hour
      punish:
        label: push-ups
        quantity_per_unit: 30
        unit_label: reps
        time_unit: hour

VALIDATION:
  Struct tags are checked with go-playground/validator before anything is
  converted. A config that fails validation never reaches the store.

SEE ALSO:
  - engine/types.go: GoalConfig, UnitSpec
  - cmd/server/main.go: loads and seeds on startup
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/screenloop/usage-engine/engine"
)

// Duration decodes YAML strings like "5m" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnitSpec describes one side of a goal's consequence in the config file.
type UnitSpec struct {
	Label           string `yaml:"label" validate:"required"`
	QuantityPerUnit int64  `yaml:"quantity_per_unit" validate:"gte=0"`
	UnitLabel       string `yaml:"unit_label" validate:"required"`
	TimeUnit        string `yaml:"time_unit" validate:"omitempty,oneof=second minute hour"`
}

// Category is one configured category with its goal.
type Category struct {
	ID               string    `yaml:"id" validate:"required"`
	DailyGoalMinutes int64     `yaml:"daily_goal_minutes" validate:"gt=0"`
	Condition        string    `yaml:"condition" validate:"required,oneof=at_most at_least"`
	Reward           *UnitSpec `yaml:"reward" validate:"omitempty"`
	Punish           *UnitSpec `yaml:"punish" validate:"omitempty"`
}

// Config is the root of the configuration file.
type Config struct {
	AggregateCategory string        `yaml:"aggregate_category"`
	SchedulerInterval Duration      `yaml:"scheduler_interval" validate:"omitempty,gt=0"`
	Categories        []Category    `yaml:"categories" validate:"required,min=1,unique=ID,dive"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// GoalConfigs converts the configured categories into engine goal configs.
func (c *Config) GoalConfigs() []engine.GoalConfig {
	goals := make([]engine.GoalConfig, 0, len(c.Categories))
	for _, cat := range c.Categories {
		goals = append(goals, engine.GoalConfig{
			CategoryID:       engine.CategoryID(cat.ID),
			DailyGoalMinutes: cat.DailyGoalMinutes,
			Condition:        engine.GoalCondition(cat.Condition),
			Reward:           unitSpec(cat.Reward),
			Punish:           unitSpec(cat.Punish),
		})
	}
	return goals
}

// CategoryIDs returns the configured category ids in file order.
func (c *Config) CategoryIDs() []engine.CategoryID {
	ids := make([]engine.CategoryID, 0, len(c.Categories))
	for _, cat := range c.Categories {
		ids = append(ids, engine.CategoryID(cat.ID))
	}
	return ids
}

func unitSpec(u *UnitSpec) engine.UnitSpec {
	if u == nil {
		return engine.UnitSpec{}
	}
	return engine.UnitSpec{
		Label:           u.Label,
		QuantityPerUnit: u.QuantityPerUnit,
		UnitLabel:       u.UnitLabel,
		TimeUnit:        engine.TimeUnit(u.TimeUnit),
	}
}
