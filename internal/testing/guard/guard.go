package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PRISMBOARD_TEST_MODE") == "" {
			_ = os.Setenv("PRISMBOARD_TEST_MODE", "1")
		}
	})
}
