package catchlog

// Version is the catchlog release version.
const Version = "0.1.0"
