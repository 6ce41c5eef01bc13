package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("INTERALPHA_TEST_MODE") == "" {
			_ = os.Setenv("INTERALPHA_TEST_MODE", "1")
		}
	})
}
