package utils

import "github.com/google/uuid"

// GenConvID generates a unique conversation ID. Conversations are not
// ordered by identity, so a random UUID is fine here.
func GenConvID() string { return "conv-" + uuid.NewString() }
