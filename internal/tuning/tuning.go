package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	OrderIntervalMs int `yaml:"order_interval_ms"`
	OrderTTLMs      int `yaml:"order_ttl_ms"`

	TimeoutTreasuryPenalty     int `yaml:"timeout_treasury_penalty"`
	TimeoutSatisfactionPenalty int `yaml:"timeout_satisfaction_penalty"`
	ServeSatisfactionBonus     int `yaml:"serve_satisfaction_bonus"`

	InitialTreasury     int `yaml:"initial_treasury"`
	InitialSatisfaction int `yaml:"initial_satisfaction"`

	// Every pick_cycle_length-th order offers a recipe the player has not
	// learned yet; the rest come from the learned partition.
	PickCycleLength int `yaml:"pick_cycle_length"`

	TokenTTLHours int `yaml:"token_ttl_hours"`
}

func Defaults() Tuning {
	return Tuning{
		OrderIntervalMs:            12000,
		OrderTTLMs:                 10000,
		TimeoutTreasuryPenalty:     8,
		TimeoutSatisfactionPenalty: 10,
		ServeSatisfactionBonus:     1,
		InitialTreasury:            100,
		InitialSatisfaction:        20,
		PickCycleLength:            4,
		TokenTTLHours:              24,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.OrderIntervalMs <= 0 {
		return fmt.Errorf("order_interval_ms must be positive")
	}
	if t.OrderTTLMs <= 0 {
		return fmt.Errorf("order_ttl_ms must be positive")
	}
	if t.PickCycleLength < 2 {
		return fmt.Errorf("pick_cycle_length must be at least 2")
	}
	return nil
}

func (t Tuning) OrderInterval() time.Duration { return time.Duration(t.OrderIntervalMs) * time.Millisecond }
func (t Tuning) OrderTTL() time.Duration      { return time.Duration(t.OrderTTLMs) * time.Millisecond }
