package scenario

import "sort"

func after(frames int, next string) []Trigger {
	return []Trigger{{Event: EventFramesElapsed, Value: frames, Next: next}}
}

// BuiltIn returns predefined scenes for a 640x480 frame. Frame counts assume
// roughly 30 frames per second.
func BuiltIn() map[string]Scenario {
	return map[string]Scenario{
		"theft": {
			Name:        "theft",
			Description: "A single bottle sits still, then is taken and never returns.",
			Objects:     []Object{{ID: "bottle", X: 320, Y: 260}},
			Phases: []Phase{
				{Name: "setup", Description: "Bottle settles on the table.", Triggers: after(60, "taken")},
				{
					Name:        "taken",
					Description: "Bottle is removed from view.",
					Actions:     []Action{{Object: "bottle", Action: ActionHide}},
				},
			},
		},
		"nudge": {
			Name:        "nudge",
			Description: "A single bottle is pushed well past the movement threshold.",
			Objects:     []Object{{ID: "bottle", X: 320, Y: 260}},
			Phases: []Phase{
				{Name: "setup", Description: "Bottle settles on the table.", Triggers: after(60, "nudged")},
				{
					Name:        "nudged",
					Description: "Bottle slides 120px to the right.",
					Actions:     []Action{{Object: "bottle", Action: ActionMove, X: 440, Y: 260}},
				},
			},
		},
		"occlusion": {
			Name:        "occlusion",
			Description: "A hand passes in front of the bottle for one second. No alert is expected.",
			Objects:     []Object{{ID: "bottle", X: 320, Y: 260}},
			Phases: []Phase{
				{Name: "setup", Description: "Bottle settles on the table.", Triggers: after(60, "occluded")},
				{
					Name:        "occluded",
					Description: "Bottle is hidden behind a hand.",
					Actions:     []Action{{Object: "bottle", Action: ActionHide}},
					Triggers:    after(30, "clear"),
				},
				{
					Name:        "clear",
					Description: "Hand moves away.",
					Actions:     []Action{{Object: "bottle", Action: ActionShow}},
				},
			},
		},
		"shelf": {
			Name:        "shelf",
			Description: "Three bottles on a shelf: the middle one is nudged, later the left one is taken.",
			Objects: []Object{
				{ID: "left", X: 160, Y: 240},
				{ID: "middle", X: 320, Y: 240},
				{ID: "right", X: 480, Y: 240},
			},
			Phases: []Phase{
				{Name: "setup", Description: "Bottles settle on the shelf.", Triggers: after(60, "nudge")},
				{
					Name:        "nudge",
					Description: "Middle bottle is pushed back 70px.",
					Actions:     []Action{{Object: "middle", Action: ActionMove, X: 320, Y: 170}},
					Triggers:    after(60, "theft"),
				},
				{
					Name:        "theft",
					Description: "Left bottle is taken.",
					Actions:     []Action{{Object: "left", Action: ActionHide}},
				},
			},
		},
	}
}

// Names lists the built-in scenarios in alphabetical order.
func Names() []string {
	arcs := BuiltIn()
	names := make([]string, 0, len(arcs))
	for n := range arcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
