package services

import (
	"encoding/json"
	"testing"

	"facilityops/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicReadPolicy(t *testing.T) {
	var policy struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal map[string][]string
			Action    []string
			Resource  []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("work-order-pictures")), &policy))

	require.Len(t, policy.Statement, 1)
	st := policy.Statement[0]
	assert.Equal(t, "Allow", st.Effect)
	assert.Equal(t, []string{"*"}, st.Principal["AWS"])
	assert.Equal(t, []string{"s3:GetObject"}, st.Action)
	assert.Equal(t, []string{"arn:aws:s3:::work-order-pictures/*"}, st.Resource)
}

func TestNewMinioService_InvalidEndpoint(t *testing.T) {
	_, err := NewMinioService(config.MinIOConfig{Endpoint: "http://minio:9000", AccessKey: "k", SecretKey: "s"})
	assert.Error(t, err)
}
