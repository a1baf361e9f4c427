package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BRANCHLINE_TEST_MODE") == "" {
			_ = os.Setenv("BRANCHLINE_TEST_MODE", "1")
		}
	})
}
