package ring

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"minimum power of two", 4096, false},
		{"larger power of two", 256 * 1024, false},
		{"below minimum", 2048, true},
		{"not power of two", 5000, true},
		{"zero", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate(%d) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			}
		})
	}
}
