package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBudget(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBudget() error {
	if c.Budget.DailyLimit <= 0 {
		return errors.New("budget.daily_limit must be positive")
	}
	if c.Budget.MonthlyLimit <= 0 {
		return errors.New("budget.monthly_limit must be positive")
	}
	if c.Budget.MonthlyLimit < c.Budget.DailyLimit {
		return errors.New("budget.monthly_limit must not be below budget.daily_limit")
	}
	if c.Budget.SoftLimitPct < 0 || c.Budget.SoftLimitPct > 1 {
		return errors.New("budget.soft_limit_pct must be between 0 and 1")
	}
	if c.Budget.MaxPerRequest < 0 {
		return errors.New("budget.max_per_request must not be negative")
	}
	return nil
}

func (c *Config) validateProviders() error {
	anyText := false
	for name, p := range c.TextProviders {
		if !p.Enabled {
			continue
		}
		anyText = true
		if err := validateProvider("text_providers", name, p); err != nil {
			return err
		}
	}
	if !anyText {
		return errors.New("at least one text provider must be enabled")
	}
	for name, p := range c.SpeechProviders {
		if !p.Enabled {
			continue
		}
		if err := validateProvider("speech_providers", name, p); err != nil {
			return err
		}
	}
	return nil
}

func validateProvider(section, name string, p Provider) error {
	if p.BaseURL == "" {
		return fmt.Errorf("%s.%s.base_url must be set", section, name)
	}
	if p.Model == "" {
		return fmt.Errorf("%s.%s.model must be set", section, name)
	}
	if p.CostPer1K < 0 {
		return fmt.Errorf("%s.%s.cost_per_1k must not be negative", section, name)
	}
	if p.Priority < 0 {
		return fmt.Errorf("%s.%s.priority must not be negative", section, name)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.DuplicateThreshold <= 0 || c.Pipeline.DuplicateThreshold > 1 {
		return errors.New("pipeline.duplicate_threshold must be between 0 and 1")
	}
	if len(c.Pipeline.Languages) == 0 {
		return errors.New("pipeline.languages must list at least one language")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if len(c.Scheduler.SlotTimes) == 0 {
		return errors.New("scheduler.slot_times must list at least one slot")
	}
	for _, slot := range c.Scheduler.SlotTimes {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("scheduler.slot_times: invalid slot %q (expected HH:MM)", slot)
		}
	}
	if c.Scheduler.DailyCapPerLanguage <= 0 {
		return errors.New("scheduler.daily_cap_per_language must be positive")
	}
	if c.Scheduler.DailyCapGlobal <= 0 {
		return errors.New("scheduler.daily_cap_global must be positive")
	}
	if c.Scheduler.DailyCapGlobal < c.Scheduler.DailyCapPerLanguage {
		return errors.New("scheduler.daily_cap_global must not be below scheduler.daily_cap_per_language")
	}
	if c.Scheduler.CadenceMinutes <= 0 {
		return errors.New("scheduler.cadence_minutes must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollIntervalSeconds <= 0 {
		return errors.New("workflow.poll_interval_seconds must be positive")
	}
	if c.Workflow.Workers <= 0 {
		return errors.New("workflow.workers must be positive")
	}
	return nil
}
