package testdata

// Payload_iOS_1 is a single GeoJSON point feature as pushed by an iOS device.
// Speed and Heading of -1 mean the device had no reading.
var Payload_iOS_1 = `{
  "type": "Feature",
  "geometry": {
    "type": "Point",
    "coordinates": [-93.2554931640625, 44.98896789550781]
  },
  "properties": {
    "Accuracy": 23.13,
    "Activity": "Walking",
    "Elevation": 328.43,
    "Heading": -1,
    "Name": "Rye16",
    "Speed": -1,
    "Time": "2024-12-23T15:31:56.728Z",
    "UnixTime": 1734967916
  }
}
`

// Payload_Android_1 is a single GeoJSON point feature as pushed by an Android device.
var Payload_Android_1 = `{
  "type": "Feature",
  "bbox": [-113.4730765, 47.1787276, -113.4730765, 47.1787276],
  "geometry": {
    "type": "Point",
    "coordinates": [-113.4730765, 47.1787276]
  },
  "properties": {
    "Accuracy": 3.9,
    "Activity": "Running",
    "Elevation": 1258.4,
    "Heading": 182,
    "Name": "ranga-moto-act3",
    "Speed": 2.61,
    "Time": "2024-12-23T15:05:34.710Z",
    "UnixTime": 1734966334,
    "speed_accuracy": 3.2
  }
}
`

// Payload_Flat_1 is the flat object shape browsers push.
var Payload_Flat_1 = `{"lat":40.7128,"lng":-74.006,"accuracy":5,"speed":2.4,"heading":90,"timestamp":1734966334000}`
