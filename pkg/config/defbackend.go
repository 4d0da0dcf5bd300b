/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// backend serves mediator settings out of viper.
type backend struct {
	configViper *viper.Viper
}

// Lookup gets the config item value by Key.
func (c *backend) Lookup(key string) (interface{}, bool) {
	value := c.configViper.Get(key)
	if value == nil {
		return nil, false
	}

	return value, true
}

// validate rejects file keys that are not mediator settings, such as a misspelt flag name.
func (c *backend) validate() error {
	var unknown []string

	for _, k := range c.configViper.AllKeys() {
		if _, ok := knownKeys[Key(k)]; !ok {
			unknown = append(unknown, k)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)

	return fmt.Errorf("%w: %v", ErrUnknownKey, unknown)
}
