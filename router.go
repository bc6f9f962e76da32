package revisor

// TableFor computes the physical table name for a base entity under the given
// context. Pure function over the configured suffix map.
func (c *Config) TableFor(base string, rc Context) string {
	suffix := c.TableSuffixes[rc]
	if suffix == "" {
		return base
	}
	return base + suffix
}

// DraftTableFor returns the table holding the working copies.
func (c *Config) DraftTableFor(base string) string {
	return c.TableFor(base, ContextDraft)
}

// VersionTableFor returns the table holding the historical snapshots.
func (c *Config) VersionTableFor(base string) string {
	return c.TableFor(base, ContextVersion)
}

// PublishedTableFor returns the table holding the published projections.
func (c *Config) PublishedTableFor(base string) string {
	return c.TableFor(base, ContextPublished)
}

// AllTablesFor returns the three table names for a base entity. The version
// table comes first so bulk cleanup touches the dependent table before the
// draft table it references.
func (c *Config) AllTablesFor(base string) []string {
	return []string{
		c.VersionTableFor(base),
		c.DraftTableFor(base),
		c.PublishedTableFor(base),
	}
}
