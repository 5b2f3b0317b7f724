package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Username string `json:"username" validate:"required,max=8"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"gte=0,lte=150"`
	Kind     string `json:"kind" validate:"omitempty,oneof=a b"`
}

func TestStruct_Valid(t *testing.T) {
	err := Struct(signup{Username: "alice", Email: "alice@x.com", Age: 30})
	assert.NoError(t, err)
}

func TestStruct_ReportsEveryField(t *testing.T) {
	err := Struct(signup{Username: "", Email: "nope", Age: 200, Kind: "c"})
	require.Error(t, err)

	fields, ok := As(err)
	require.True(t, ok)
	require.Len(t, fields, 4)

	byField := map[string]string{}
	for _, fe := range fields {
		byField[fe.Field] = fe.Message
	}
	assert.Equal(t, "username is required", byField["username"])
	assert.Equal(t, "email must be a valid email address", byField["email"])
	assert.Equal(t, "age must be less than or equal to 150", byField["age"])
	assert.Equal(t, "kind must be one of: a b", byField["kind"])
}

func TestStruct_MaxLengthMessage(t *testing.T) {
	err := Struct(signup{Username: "much-too-long", Email: "a@b.co"})
	fields, ok := As(err)
	require.True(t, ok)
	require.Len(t, fields, 1)
	assert.Equal(t, "username must be at most 8 characters", fields[0].Message)
}

func TestErrors_ErrAndWrapping(t *testing.T) {
	var errs Errors
	assert.NoError(t, errs.Err())

	errs.Add("password", "too short")
	wrapped := fmt.Errorf("register: %w", errs.Err())

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "password", got[0].Field)
	assert.Equal(t, "password: too short", got.Error())

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
