/*
Copyright 2021 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
package aws implements zone fail-away for AWS auto scaling groups

Design
------

                 +------------------------+
                 |                        |  DescribeAvailabilityZones
  Remove/Restore |       Autoscaler       +------------------------------+
  -------------->|                        |                              |
                 +---+----------------+---+                    +---------v--------+
                     |                |                        |                  |
                     |                | DescribeSubnets        |       EC2        |
   DescribeAutoScalingGroups          +----------------------->|                  |
   UpdateAutoScalingGroup             |                        +------------------+
                     |                |
           +---------v--------+       | Get recovery record
           |                  |       |
           |   Auto Scaling   |  +----v-------------+
           |                  |  |                  |
           +------------------+  |  Recovery store  |
                                 |                  |
                                 +------------------+

* Remove resolves the zone ID (e.g. use2-az1) to the zone name (e.g. us-east-2a)
  and lists all auto scaling groups page by page, keeping the groups that use the zone.
* For every such group, the zone is removed from its availability zones and
  the group's subnets are narrowed down to the subnets in the remaining zones.
* Restore reads the recovery record for the account and zone, re-reads the live
  configuration of every recorded group and adds back the subnets the group
  had in the zone at removal time.
* Update failures never surface as errors: the resulting event carries
  the Failed status. Only a zone that does not resolve and a removal that would
  leave a group without zones are reported as errors.
*/
package aws
