package room

import "testing"

func TestValidateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "trims whitespace", input: "  lobby  ", want: "lobby"},
		{name: "single rune", input: "x", want: "x"},
		{name: "fifty runes", input: stringOfLen(50), want: stringOfLen(50)},
		{name: "empty after trim", input: "   ", wantErr: ErrNameLength},
		{name: "too long", input: stringOfLen(51), wantErr: ErrNameLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ValidateName(tt.input)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got != tt.want {
				t.Errorf("name = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateMaxServers(t *testing.T) {
	t.Parallel()

	if err := ValidateMaxServers(1); err != nil {
		t.Errorf("ValidateMaxServers(1) = %v, want nil", err)
	}
	if err := ValidateMaxServers(0); err != ErrInvalidMaxGuilds {
		t.Errorf("ValidateMaxServers(0) = %v, want %v", err, ErrInvalidMaxGuilds)
	}
	if err := ValidateMaxServers(-5); err != ErrInvalidMaxGuilds {
		t.Errorf("ValidateMaxServers(-5) = %v, want %v", err, ErrInvalidMaxGuilds)
	}
}

func TestValidatePermissionLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		maxMessageLength int
		rateLimitSeconds int
		wantErr          bool
	}{
		{name: "defaults", maxMessageLength: 2000, rateLimitSeconds: 0, wantErr: false},
		{name: "min bounds", maxMessageLength: 1, rateLimitSeconds: 0, wantErr: false},
		{name: "max bounds", maxMessageLength: 4000, rateLimitSeconds: 60, wantErr: false},
		{name: "message length zero", maxMessageLength: 0, rateLimitSeconds: 0, wantErr: true},
		{name: "message length over", maxMessageLength: 4001, rateLimitSeconds: 0, wantErr: true},
		{name: "rate limit negative", maxMessageLength: 2000, rateLimitSeconds: -1, wantErr: true},
		{name: "rate limit over", maxMessageLength: 2000, rateLimitSeconds: 61, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidatePermissionLimits(tt.maxMessageLength, tt.rateLimitSeconds)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDefaultPermissions(t *testing.T) {
	t.Parallel()

	p := DefaultPermissions(7)
	if p.RoomID != 7 {
		t.Errorf("RoomID = %d, want 7", p.RoomID)
	}
	if !p.AllowURLs || !p.AllowFiles || !p.AllowEmojis {
		t.Error("expected URLs, files, and emojis allowed by default")
	}
	if p.AllowMentions || p.EnableBadWordFilter {
		t.Error("expected mentions and bad-word filter disabled by default")
	}
	if p.MaxMessageLength != 2000 || p.RateLimitSeconds != 0 {
		t.Errorf("unexpected default limits: %+v", p)
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
