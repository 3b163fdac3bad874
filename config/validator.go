package config

// Validator is implemented by every sub-config
type Validator interface {
	Validate() error
}

// ValidateAll returns the first failure
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
