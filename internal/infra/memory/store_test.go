package memory

import (
	"testing"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/app/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) app.Store { return NewStore() })
}
