package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greybell/butler/pkg/domain"
)

func TestRenderTemplate(t *testing.T) {
	event := testEvent("calendar", "calendar.upcoming", domain.Payload{
		"title":    "Standup",
		"minutes":  float64(15),
		"location": "Room 4",
	})

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "single placeholder",
			template: "Reminder: {{event.title}}",
			want:     "Reminder: Standup",
		},
		{
			name:     "multiple placeholders",
			template: "{{event.title}} in {{event.minutes}} minutes at {{event.location}}",
			want:     "Standup in 15 minutes at Room 4",
		},
		{
			name:     "missing field renders empty",
			template: "Organizer: {{event.organizer}}!",
			want:     "Organizer: !",
		},
		{
			name:     "no placeholders passes through",
			template: "static text",
			want:     "static text",
		},
		{
			name:     "integral float prints without decimals",
			template: "{{event.minutes}}",
			want:     "15",
		},
		{
			name:     "repeated placeholder",
			template: "{{event.title}} / {{event.title}}",
			want:     "Standup / Standup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, event))
		})
	}
}

func TestRenderTemplateEmptyPayload(t *testing.T) {
	event := testEvent("x", "y", nil)
	assert.Equal(t, "value: ", RenderTemplate("value: {{event.anything}}", event))
}
