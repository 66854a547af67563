package order

import "time"

// test hooks

func SetNowFunc(fn func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = fn
	return func() { nowFunc = orig }
}

func SetRandIntn(fn func(int) int) (restore func()) {
	orig := randIntn
	randIntn = fn
	return func() { randIntn = orig }
}
