package auth

import "fmt"

// Config configures the token lifecycle
type Config struct {
	// StrictRotation makes refresh and logout compare-and-swap the session,
	// so of two concurrent refreshes of one credential exactly one wins
	StrictRotation bool `yaml:"strict_rotation" mapstructure:"strict_rotation"`

	Password PasswordConfig `yaml:"password" mapstructure:"password"`
}

// PasswordConfig configures hashing and the policy applied to new passwords
type PasswordConfig struct {
	BcryptCost int            `yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"` // 10-14
	Policy     PasswordPolicy `yaml:"policy" mapstructure:"policy"`
}

type PasswordPolicy struct {
	MinLength        int  `yaml:"min_length" mapstructure:"min_length"`
	MaxLength        int  `yaml:"max_length" mapstructure:"max_length"` // bcrypt ignores bytes past 72
	RequireUppercase bool `yaml:"require_uppercase" mapstructure:"require_uppercase"`
	RequireLowercase bool `yaml:"require_lowercase" mapstructure:"require_lowercase"`
	RequireDigit     bool `yaml:"require_digit" mapstructure:"require_digit"`
}

func (c *Config) ApplyDefaults() {
	if c.Password.BcryptCost == 0 {
		c.Password.BcryptCost = 12
	}
	if c.Password.Policy.MinLength == 0 {
		c.Password.Policy.MinLength = 8
	}
	if c.Password.Policy.MaxLength == 0 {
		c.Password.Policy.MaxLength = 72
	}
}

func (c Config) Validate() error {
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return fmt.Errorf("auth: bcrypt_cost must be between 4 and 31, got %d", c.Password.BcryptCost)
	}
	if c.Password.Policy.MinLength > c.Password.Policy.MaxLength {
		return fmt.Errorf("auth: password min_length %d exceeds max_length %d",
			c.Password.Policy.MinLength, c.Password.Policy.MaxLength)
	}
	return nil
}
