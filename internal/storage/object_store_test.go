package storage

import "testing"

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "127.0.0.1:9000", wantHost: "127.0.0.1:9000"},
		{raw: "minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: true},
		{raw: "https://s3.example.com", wantHost: "s3.example.com", wantSecure: true},
		{raw: "http://minio:9000", useSSL: true, wantHost: "minio:9000"},
		{raw: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, secure, err := parseEndpoint(tt.raw, tt.useSSL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", host)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if host != tt.wantHost || secure != tt.wantSecure {
				t.Fatalf("got (%q, %v), want (%q, %v)", host, secure, tt.wantHost, tt.wantSecure)
			}
		})
	}
}
