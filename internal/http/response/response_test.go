package response

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	Level string `validate:"required,oneof=BRONZE GOLD"`
	Count int    `validate:"gte=1"`
	Note  string `validate:"max=3"`
}

func TestValidationError(t *testing.T) {
	err := validator.New().Struct(payload{Email: "nope", Level: "X", Note: "long"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t,
		"field Name is a required field, "+
			"field Email must be a valid email, "+
			"field Level must be one of [BRONZE GOLD], "+
			"field Count must be greater than or equal to 1, "+
			"field Note must be at most 3",
		resp.Error)
}

func TestEnvelopes(t *testing.T) {
	body, err := json.Marshal(OK("user found", map[string]int{"id": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","message":"user found","data":{"id":1}}`, string(body))

	body, err = json.Marshal(OK("users", []int{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"OK","message":"users","data":[]}`, string(body))

	body, err = json.Marshal(Error("user not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Error","error":"user not found"}`, string(body))
}
