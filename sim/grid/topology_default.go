// Built-in midtown topology used when no topology file is supplied. Four
// substation buses ring a set of street loads and charging points, roughly
// following Con Edison's midtown service areas.

package grid

// DefaultTopology returns a small validated midtown network.
func DefaultTopology() *Topology {
	return &Topology{
		SlackBus: "sub_grand_central",
		Nodes: []Node{
			{ID: "sub_grand_central", Kind: KindBus, CapacityMW: 1000, VoltageKV: 138},
			{ID: "sub_times_square", Kind: KindBus, CapacityMW: 850, VoltageKV: 138},
			{ID: "sub_penn_station", Kind: KindBus, CapacityMW: 900, VoltageKV: 138},
			{ID: "sub_murray_hill", Kind: KindBus, CapacityMW: 650, VoltageKV: 138},

			{ID: "load_theater_district", Kind: KindLoad, BaseLoadMW: 120, CapacityMW: 200, VoltageKV: 13.8, FeedFrom: "sub_times_square"},
			{ID: "load_garment_district", Kind: KindLoad, BaseLoadMW: 90, CapacityMW: 160, VoltageKV: 13.8, FeedFrom: "sub_penn_station"},
			{ID: "load_midtown_east", Kind: KindLoad, BaseLoadMW: 140, CapacityMW: 220, VoltageKV: 13.8, FeedFrom: "sub_grand_central"},
			{ID: "load_kips_bay", Kind: KindLoad, BaseLoadMW: 70, CapacityMW: 130, VoltageKV: 13.8, FeedFrom: "sub_murray_hill"},

			{ID: "cs_times_square_garage", Kind: KindCharging, BaseLoadMW: 1.5, CapacityMW: 4.0, VoltageKV: 13.8, FeedFrom: "sub_times_square"},
			{ID: "cs_penn_station_hub", Kind: KindCharging, BaseLoadMW: 1.2, CapacityMW: 3.2, VoltageKV: 13.8, FeedFrom: "sub_penn_station"},
			{ID: "cs_grand_central", Kind: KindCharging, BaseLoadMW: 1.8, CapacityMW: 4.8, VoltageKV: 13.8, FeedFrom: "sub_grand_central"},
			{ID: "cs_bryant_park", Kind: KindCharging, BaseLoadMW: 0.9, CapacityMW: 2.4, VoltageKV: 13.8, FeedFrom: "sub_times_square"},
			{ID: "cs_murray_hill_garage", Kind: KindCharging, BaseLoadMW: 0.8, CapacityMW: 2.0, VoltageKV: 13.8, FeedFrom: "sub_murray_hill"},
		},
		Lines: []Line{
			{From: "sub_grand_central", To: "sub_times_square", SusceptancePU: 12, LimitMW: 400},
			{From: "sub_grand_central", To: "sub_murray_hill", SusceptancePU: 10, LimitMW: 300},
			{From: "sub_times_square", To: "sub_penn_station", SusceptancePU: 12, LimitMW: 400},
			{From: "sub_penn_station", To: "sub_murray_hill", SusceptancePU: 8, LimitMW: 250},

			{From: "sub_times_square", To: "load_theater_district", SusceptancePU: 6, LimitMW: 220},
			{From: "sub_penn_station", To: "load_garment_district", SusceptancePU: 6, LimitMW: 180},
			{From: "sub_grand_central", To: "load_midtown_east", SusceptancePU: 6, LimitMW: 240},
			{From: "sub_murray_hill", To: "load_kips_bay", SusceptancePU: 5, LimitMW: 150},

			{From: "sub_times_square", To: "cs_times_square_garage", SusceptancePU: 4, LimitMW: 10},
			{From: "sub_penn_station", To: "cs_penn_station_hub", SusceptancePU: 4, LimitMW: 8},
			{From: "sub_grand_central", To: "cs_grand_central", SusceptancePU: 4, LimitMW: 12},
			{From: "sub_times_square", To: "cs_bryant_park", SusceptancePU: 3, LimitMW: 6},
			{From: "sub_murray_hill", To: "cs_murray_hill_garage", SusceptancePU: 3, LimitMW: 6},
		},
	}
}

// DefaultStationPlacements maps the default charging nodes onto the traffic
// simulator plane (10km square).
func DefaultStationPlacements() map[string][2]float64 {
	return map[string][2]float64{
		"cs_times_square_garage": {4200, 6200},
		"cs_penn_station_hub":    {3400, 4600},
		"cs_grand_central":       {6100, 5400},
		"cs_bryant_park":         {5000, 5800},
		"cs_murray_hill_garage":  {6300, 4100},
	}
}
