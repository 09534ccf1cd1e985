package mailtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs and breaks",
			in:   "<p>Flight Confirmation</p><p>Flight: AA456<br>Date: July 20, 2024</p>",
			want: "Flight Confirmation\nFlight: AA456\nDate: July 20, 2024",
		},
		{
			name: "table cells",
			in:   "<table><tr><td>Confirmation:</td><td>ABC123</td></tr><tr><td>Total:</td><td>$412.50</td></tr></table>",
			want: "Confirmation: ABC123\nTotal: $412.50",
		},
		{
			name: "script and style dropped",
			in:   "<html><head><style>p{color:red}</style></head><body><script>track()</script><div>Check-in: 07/20/2024</div></body></html>",
			want: "Check-in: 07/20/2024",
		},
		{
			name: "entities and whitespace",
			in:   "<div>The&nbsp;Grand   Hotel &amp; Spa</div>",
			want: "The Grand Hotel & Spa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.in))
		})
	}
}
