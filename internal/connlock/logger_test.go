package connlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestSetLoggerWhileLogging(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	l := zap.NewNop()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				SetLogger(l)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Logger().Debug("tick")
			}
		}()
	}
	wg.Wait()
	assert.Same(t, l, Logger())

	SetLogger(nil)
	assert.NotNil(t, Logger())
}
