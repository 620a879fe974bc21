/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadAdminKey is returned when the presented operator key does not
// match the configured hash.
var ErrBadAdminKey = errors.New("invalid admin key")

// HashAdminKey derives the bcrypt hash an operator stores in
// MIMIR_ADMIN_KEY_HASH.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminKey compares a presented key against the configured hash.
func VerifyAdminKey(hash, key string) error {
	if hash == "" {
		return ErrBadAdminKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return ErrBadAdminKey
	}
	return nil
}
