package catalog

import (
	"fleetsim/pkg/geo"
	"fleetsim/pkg/types"
)

// defaultRoutes is the built-in Ahmedabad network.
var defaultRoutes = []types.Route{
	{
		RouteID:        1,
		Source:         "Ahmedabad Railway Station",
		Destination:    "Sardar Vallabhbhai Patel International Airport",
		DistanceKM:     25.3,
		Color:          "#3B82F6",
		HeadwayMinutes: 15,
		Stops: []types.Stop{
			{Name: "Ahmedabad Railway Station", Location: geo.Coordinate{Lat: 23.0225, Lng: 72.5714}, Type: types.StopMajor},
			{Name: "Gandhi Ashram", Location: geo.Coordinate{Lat: 23.0300, Lng: 72.5800}, Type: types.StopIntermediate},
			{Name: "Sabarmati Riverfront", Location: geo.Coordinate{Lat: 23.0350, Lng: 72.5850}, Type: types.StopIntermediate},
			{Name: "Science City", Location: geo.Coordinate{Lat: 23.0400, Lng: 72.5900}, Type: types.StopIntermediate},
			{Name: "Vastrapur Lake", Location: geo.Coordinate{Lat: 23.0450, Lng: 72.5950}, Type: types.StopIntermediate},
			{Name: "Iskon Temple", Location: geo.Coordinate{Lat: 23.0500, Lng: 72.6000}, Type: types.StopIntermediate},
			{Name: "Airport", Location: geo.Coordinate{Lat: 23.0550, Lng: 72.6050}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        2,
		Source:         "Maninagar",
		Destination:    "Bodakdev",
		DistanceKM:     18.7,
		Color:          "#10B981",
		HeadwayMinutes: 12,
		Stops: []types.Stop{
			{Name: "Maninagar", Location: geo.Coordinate{Lat: 23.0000, Lng: 72.6000}, Type: types.StopMajor},
			{Name: "Lal Darwaja", Location: geo.Coordinate{Lat: 23.0050, Lng: 72.6050}, Type: types.StopIntermediate},
			{Name: "Bhadra Fort", Location: geo.Coordinate{Lat: 23.0100, Lng: 72.6100}, Type: types.StopIntermediate},
			{Name: "Law Garden", Location: geo.Coordinate{Lat: 23.0150, Lng: 72.6150}, Type: types.StopIntermediate},
			{Name: "Navrangpura", Location: geo.Coordinate{Lat: 23.0200, Lng: 72.6200}, Type: types.StopIntermediate},
			{Name: "Vastrapur", Location: geo.Coordinate{Lat: 23.0250, Lng: 72.6250}, Type: types.StopIntermediate},
			{Name: "Bodakdev", Location: geo.Coordinate{Lat: 23.0300, Lng: 72.6300}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        3,
		Source:         "Gandhinagar",
		Destination:    "Ahmedabad City",
		DistanceKM:     22.1,
		Color:          "#F59E0B",
		HeadwayMinutes: 20,
		Stops: []types.Stop{
			{Name: "Gandhinagar", Location: geo.Coordinate{Lat: 23.2150, Lng: 72.6500}, Type: types.StopMajor},
			{Name: "Sector 21", Location: geo.Coordinate{Lat: 23.2100, Lng: 72.6450}, Type: types.StopIntermediate},
			{Name: "Akshardham Temple", Location: geo.Coordinate{Lat: 23.2050, Lng: 72.6400}, Type: types.StopIntermediate},
			{Name: "Gandhinagar Bus Stand", Location: geo.Coordinate{Lat: 23.2000, Lng: 72.6350}, Type: types.StopIntermediate},
			{Name: "Sarkhej", Location: geo.Coordinate{Lat: 23.1950, Lng: 72.6300}, Type: types.StopIntermediate},
			{Name: "Juhapura", Location: geo.Coordinate{Lat: 23.1900, Lng: 72.6250}, Type: types.StopIntermediate},
			{Name: "Ahmedabad City", Location: geo.Coordinate{Lat: 23.1850, Lng: 72.6200}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        4,
		Source:         "Sabarmati",
		Destination:    "Naroda",
		DistanceKM:     16.8,
		Color:          "#EF4444",
		HeadwayMinutes: 18,
		Stops: []types.Stop{
			{Name: "Sabarmati", Location: geo.Coordinate{Lat: 23.0400, Lng: 72.5800}, Type: types.StopMajor},
			{Name: "Sabarmati Ashram", Location: geo.Coordinate{Lat: 23.0350, Lng: 72.5850}, Type: types.StopIntermediate},
			{Name: "Sabarmati Riverfront", Location: geo.Coordinate{Lat: 23.0300, Lng: 72.5900}, Type: types.StopIntermediate},
			{Name: "Ellisbridge", Location: geo.Coordinate{Lat: 23.0250, Lng: 72.5950}, Type: types.StopIntermediate},
			{Name: "C.G. Road", Location: geo.Coordinate{Lat: 23.0200, Lng: 72.6000}, Type: types.StopIntermediate},
			{Name: "Naroda Industrial Area", Location: geo.Coordinate{Lat: 23.0150, Lng: 72.6050}, Type: types.StopIntermediate},
			{Name: "Naroda", Location: geo.Coordinate{Lat: 23.0100, Lng: 72.6100}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        5,
		Source:         "Thaltej",
		Destination:    "Chandkheda",
		DistanceKM:     19.5,
		Color:          "#8B5CF6",
		HeadwayMinutes: 14,
		Stops: []types.Stop{
			{Name: "Thaltej", Location: geo.Coordinate{Lat: 23.0500, Lng: 72.5500}, Type: types.StopMajor},
			{Name: "Thaltej Gam", Location: geo.Coordinate{Lat: 23.0450, Lng: 72.5550}, Type: types.StopIntermediate},
			{Name: "Thaltej Lake", Location: geo.Coordinate{Lat: 23.0400, Lng: 72.5600}, Type: types.StopIntermediate},
			{Name: "Bodakdev", Location: geo.Coordinate{Lat: 23.0350, Lng: 72.5650}, Type: types.StopIntermediate},
			{Name: "Vastrapur", Location: geo.Coordinate{Lat: 23.0300, Lng: 72.5700}, Type: types.StopIntermediate},
			{Name: "Gandhinagar Highway", Location: geo.Coordinate{Lat: 23.0250, Lng: 72.5750}, Type: types.StopIntermediate},
			{Name: "Chandkheda", Location: geo.Coordinate{Lat: 23.0200, Lng: 72.5800}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        6,
		Source:         "Kalupur",
		Destination:    "Vastrapur",
		DistanceKM:     14.2,
		Color:          "#06B6D4",
		HeadwayMinutes: 10,
		Stops: []types.Stop{
			{Name: "Kalupur", Location: geo.Coordinate{Lat: 23.0250, Lng: 72.5900}, Type: types.StopMajor},
			{Name: "Kalupur Market", Location: geo.Coordinate{Lat: 23.0270, Lng: 72.5920}, Type: types.StopIntermediate},
			{Name: "Dhalgarwad", Location: geo.Coordinate{Lat: 23.0290, Lng: 72.5940}, Type: types.StopIntermediate},
			{Name: "Kankaria Lake", Location: geo.Coordinate{Lat: 23.0310, Lng: 72.5960}, Type: types.StopIntermediate},
			{Name: "Lal Darwaja", Location: geo.Coordinate{Lat: 23.0330, Lng: 72.5980}, Type: types.StopIntermediate},
			{Name: "Ellisbridge", Location: geo.Coordinate{Lat: 23.0350, Lng: 72.6000}, Type: types.StopIntermediate},
			{Name: "Vastrapur", Location: geo.Coordinate{Lat: 23.0370, Lng: 72.6020}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        7,
		Source:         "Bapunagar",
		Destination:    "Paldi",
		DistanceKM:     11.8,
		Color:          "#84CC16",
		HeadwayMinutes: 16,
		Stops: []types.Stop{
			{Name: "Bapunagar", Location: geo.Coordinate{Lat: 23.0150, Lng: 72.6200}, Type: types.StopMajor},
			{Name: "Bapunagar Market", Location: geo.Coordinate{Lat: 23.0120, Lng: 72.6180}, Type: types.StopIntermediate},
			{Name: "Naroda Road", Location: geo.Coordinate{Lat: 23.0090, Lng: 72.6160}, Type: types.StopIntermediate},
			{Name: "Shahpur", Location: geo.Coordinate{Lat: 23.0060, Lng: 72.6140}, Type: types.StopIntermediate},
			{Name: "Raipur Darwaja", Location: geo.Coordinate{Lat: 23.0030, Lng: 72.6120}, Type: types.StopIntermediate},
			{Name: "Paldi Gam", Location: geo.Coordinate{Lat: 23.0000, Lng: 72.6100}, Type: types.StopIntermediate},
			{Name: "Paldi", Location: geo.Coordinate{Lat: 22.9970, Lng: 72.6080}, Type: types.StopMajor},
		},
	},
	{
		RouteID:        8,
		Source:         "Naranpura",
		Destination:    "Satellite",
		DistanceKM:     13.5,
		Color:          "#F97316",
		HeadwayMinutes: 13,
		Stops: []types.Stop{
			{Name: "Naranpura", Location: geo.Coordinate{Lat: 23.0400, Lng: 72.6100}, Type: types.StopMajor},
			{Name: "Naranpura Gam", Location: geo.Coordinate{Lat: 23.0380, Lng: 72.6120}, Type: types.StopIntermediate},
			{Name: "Gujarat University", Location: geo.Coordinate{Lat: 23.0360, Lng: 72.6140}, Type: types.StopIntermediate},
			{Name: "Navrangpura", Location: geo.Coordinate{Lat: 23.0340, Lng: 72.6160}, Type: types.StopIntermediate},
			{Name: "Ellisbridge", Location: geo.Coordinate{Lat: 23.0320, Lng: 72.6180}, Type: types.StopIntermediate},
			{Name: "Satellite Circle", Location: geo.Coordinate{Lat: 23.0300, Lng: 72.6200}, Type: types.StopIntermediate},
			{Name: "Satellite", Location: geo.Coordinate{Lat: 23.0280, Lng: 72.6220}, Type: types.StopMajor},
		},
	},
}

var defaultFleet = []BusConfig{
	{BusID: 1, LicensePlate: "BUS-001", RouteID: 1, Capacity: 50},
	{BusID: 2, LicensePlate: "BUS-002", RouteID: 1, Capacity: 50},
	{BusID: 3, LicensePlate: "BUS-003", RouteID: 2, Capacity: 40},
	{BusID: 4, LicensePlate: "BUS-004", RouteID: 2, Capacity: 40},
	{BusID: 5, LicensePlate: "BUS-005", RouteID: 3, Capacity: 45},
	{BusID: 6, LicensePlate: "BUS-006", RouteID: 3, Capacity: 45},
	{BusID: 7, LicensePlate: "BUS-007", RouteID: 4, Capacity: 35},
	{BusID: 8, LicensePlate: "BUS-008", RouteID: 4, Capacity: 35},
	{BusID: 9, LicensePlate: "BUS-009", RouteID: 5, Capacity: 55},
	{BusID: 10, LicensePlate: "BUS-010", RouteID: 5, Capacity: 55},
}
