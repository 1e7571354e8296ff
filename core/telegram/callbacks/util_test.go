package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name         string
		cb           *tele.Callback
		key, payload string
	}{
		{"nil", nil, "", ""},
		{"encoded", &tele.Callback{Data: "\fsubmit_type|hot_water"}, "submit_type", "hot_water"},
		{"no payload", &tele.Callback{Data: "\fsubmit_finish"}, "submit_finish", ""},
		{"payload with separator", &tele.Callback{Data: "\fedit_serial|A|B"}, "edit_serial", "A|B"},
		{"already split", &tele.Callback{Unique: "admin_delete_user", Data: "77"}, "admin_delete_user", "77"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, payload := ParseCallbackData(tc.cb)
			if key != tc.key || payload != tc.payload {
				t.Fatalf("got (%q, %q), want (%q, %q)", key, payload, tc.key, tc.payload)
			}
		})
	}
}
