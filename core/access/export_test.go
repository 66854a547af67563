package access

import "time"

// test hook

func SetNowFunc(fn func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = fn
	return func() { nowFunc = orig }
}
