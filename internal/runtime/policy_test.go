package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/uikit/internal/element"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input     string
		want      Policy
		cacheable bool
		prerender bool
		wantErr   bool
	}{
		{"", Auto, true, true, false},
		{"AUTO", Auto, true, true, false},
		{"disabled", Disabled, false, false, false},
		{"ephemeral", Ephemeral, false, true, false},
		{"5m", Policy{Mode: PolicyDuration, TTL: 5 * time.Minute}, true, true, false},
		{"-5m", Auto, false, false, true},
		{"0s", Auto, false, false, true},
		{"soon", Auto, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePolicy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
			assert.Equal(t, tt.cacheable, p.Cacheable())
			assert.Equal(t, tt.prerender, p.Prerenderable())

			again, err := ParsePolicy(p.String())
			require.NoError(t, err)
			assert.Equal(t, p, again)
		})
	}
}

func TestPolicyTTL(t *testing.T) {
	assert.Equal(t, time.Hour, Auto.ttl(time.Hour))
	assert.Equal(t, time.Minute, Policy{Mode: PolicyDuration, TTL: time.Minute}.ttl(time.Hour))
}

func TestSkeletonEncodeEscapesBackticks(t *testing.T) {
	sk := Skeleton{Content: element.Content{element.Text("use `code`")}}
	encoded, err := sk.Encode()
	require.NoError(t, err)
	assert.NotContains(t, encoded, "`")
	assert.True(t, sk.IsStatic())

	decoded, err := ParseSkeleton(encoded)
	require.NoError(t, err)
	assert.Equal(t, "use `code`", decoded.Content[0].Text)
}

func TestArgumentsAccessors(t *testing.T) {
	args := Arguments{
		Attributes: element.Attributes{"type": "success", "dismissible": "", "id": "n1"},
		Variables:  map[string]interface{}{"title": 42, "open": false},
	}

	assert.Equal(t, "42", args.String("title", ""))
	assert.Equal(t, "success", args.String("TYPE", "info"))
	assert.Equal(t, "info", args.String("missing", "info"))
	assert.True(t, args.Bool("dismissible"))
	assert.False(t, args.Bool("open"))
	assert.False(t, args.Bool("missing"))
	assert.Equal(t, element.Attributes{"id": "n1"}, args.Passthrough("type", "dismissible"))
}
