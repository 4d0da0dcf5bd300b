/*
Reference implementation of kmutex from github.com/im7mortal/kmutex

SPDX-License-Identifier: Apache-2.0
*/

package connection

import "sync"

// lockbox serializes work per key. Holders of several keys take them in a fixed order: client, then recipient.
type lockbox struct {
	c *sync.Cond
	l sync.Locker
	s map[interface{}]struct{}
}

type clientKey string

type recipientKey string

func newLockBox() *lockbox {
	l := sync.Mutex{}
	return &lockbox{c: sync.NewCond(&l), l: &l, s: make(map[interface{}]struct{})}
}

func (km *lockbox) locked(key interface{}) (ok bool) { _, ok = km.s[key]; return }

// Unlock lockbox by unique ID.
func (km *lockbox) Unlock(key interface{}) {
	km.l.Lock()
	defer km.l.Unlock()
	delete(km.s, key)
	km.c.Broadcast()
}

// Lock lockbox by unique ID.
func (km *lockbox) Lock(key interface{}) {
	km.l.Lock()
	defer km.l.Unlock()

	for km.locked(key) {
		km.c.Wait()
	}

	km.s[key] = struct{}{}
}

// with runs fn holding key.
func (km *lockbox) with(key interface{}, fn func()) {
	km.Lock(key)
	defer km.Unlock(key)

	fn()
}
