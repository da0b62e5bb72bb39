package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUserIDLength      = 1
	MaxUserIDLength      = 64
	MinDisplayNameLength = 2
	MaxDisplayNameLength = 100
)

var (
	userIDPattern        = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
	hederaAccountPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	evmAddressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateUserID проверяет внешний идентификатор пользователя.
func ValidateUserID(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("userId обязателен")
	}
	if err := ValidateLength("userId", userID, MinUserIDLength, MaxUserIDLength); err != nil {
		return err
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("userId может содержать только буквы, цифры, точку, дефис и подчёркивание")
	}
	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("displayName обязателен")
	}
	return ValidateLength("displayName", name, MinDisplayNameLength, MaxDisplayNameLength)
}

// ValidateHederaAccountID проверяет формат shard.realm.num (например 0.0.12345).
func ValidateHederaAccountID(accountID string) error {
	if accountID == "" {
		return nil
	}
	if !hederaAccountPattern.MatchString(accountID) {
		return fmt.Errorf("hederaAccountId должен иметь формат shard.realm.num, например 0.0.12345")
	}
	return nil
}

// ValidateEvmAddress проверяет формат EVM-адреса.
func ValidateEvmAddress(address string) error {
	if address == "" {
		return nil
	}
	if !evmAddressPattern.MatchString(address) {
		return fmt.Errorf("evmAddress должен быть hex-адресом вида 0x...")
	}
	return nil
}
