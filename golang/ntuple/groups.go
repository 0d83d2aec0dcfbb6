package ntuple

import "sort"

//Group is a plot group: a set of samples drawn together with one color and legend entry.
type Group struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
	Color   string   `yaml:"color"`
	Legend  string   `yaml:"legend"`
	// DataDriven groups are estimated from data and are never trained on.
	DataDriven bool `yaml:"data_driven"`
}

//GroupInfo maps plot groups to their member samples.
type GroupInfo struct {
	groups map[string]Group
	order  []string
}

//NewGroupInfo indexes groups, keeping their order.
func NewGroupInfo(groups []Group) *GroupInfo {
	info := &GroupInfo{groups: make(map[string]Group, len(groups))}
	for _, g := range groups {
		if _, ok := info.groups[g.Name]; !ok {
			info.order = append(info.order, g.Name)
		}
		info.groups[g.Name] = g
	}
	return info
}

//Groups returns group names in configuration order.
func (gi *GroupInfo) Groups() []string {
	out := make([]string, len(gi.order))
	copy(out, gi.order)
	return out
}

//SetupGroups returns the members of the requested groups; unknown and empty names are skipped.
func (gi *GroupInfo) SetupGroups(names []string) map[string][]string {
	out := make(map[string][]string)
	for _, name := range names {
		g, ok := gi.groups[name]
		if !ok {
			continue
		}
		out[name] = append([]string(nil), g.Members...)
	}
	return out
}

//Members returns the members of the requested groups merged into one sorted list.
func (gi *GroupInfo) Members(names ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, members := range gi.SetupGroups(names) {
		for _, m := range members {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

//GroupOf returns the group containing a member.
func (gi *GroupInfo) GroupOf(member string) (string, bool) {
	for _, name := range gi.order {
		for _, m := range gi.groups[name].Members {
			if m == member {
				return name, true
			}
		}
	}
	return "", false
}

//Color returns the configured color of a group ("k" when unset).
func (gi *GroupInfo) Color(group string) string {
	if g, ok := gi.groups[group]; ok && g.Color != "" {
		return g.Color
	}
	return "k"
}

//LegendName returns the legend entry of a group, defaulting to its name.
func (gi *GroupInfo) LegendName(group string) string {
	if g, ok := gi.groups[group]; ok && g.Legend != "" {
		return g.Legend
	}
	return group
}

//IsDataDriven reports whether a group is estimated from data.
func (gi *GroupInfo) IsDataDriven(group string) bool {
	return gi.groups[group].DataDriven
}
