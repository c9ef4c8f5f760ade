package handler

import (
	"encoding/json"
	"testing"

	"github.com/set-night/rewardhub/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexInt_Unmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{`42`, 42, false},
		{`"42"`, 42, false},
		{`" 7 "`, 7, false},
		{`12.0`, 12, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`12.5`, 0, true},
		{`"abc"`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v struct {
				N flexInt `json:"n"`
			}
			err := json.Unmarshal([]byte(`{"n":`+tt.in+`}`), &v)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(v.N))
		})
	}
}

func TestAPIRequest_DisplayName(t *testing.T) {
	req := apiRequest{FirstName: "Body", Username: "body_user"}
	first, user := req.displayName()
	assert.Equal(t, "Body", first)
	assert.Equal(t, "body_user", user)

	req.session = &service.Session{FirstName: "Signed"}
	first, user = req.displayName()
	assert.Equal(t, "Signed", first)
	assert.Equal(t, "body_user", user)
}
